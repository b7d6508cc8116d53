package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campaignkit/drip-engine/internal/domain"
	"github.com/campaignkit/drip-engine/internal/queue"
	"github.com/campaignkit/drip-engine/internal/service"
	"github.com/campaignkit/drip-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	return fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string, contentType string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubTickRunner struct {
	runFn func(ctx context.Context, params service.TickParams) (*service.TickSummary, error)
}

func (s *stubTickRunner) Run(ctx context.Context, params service.TickParams) (*service.TickSummary, error) {
	if s.runFn != nil {
		return s.runFn(ctx, params)
	}
	return &service.TickSummary{}, nil
}

type stubFolderScanner struct {
	scanFn func(ctx context.Context) (*service.ScanSummary, error)
}

func (s *stubFolderScanner) Scan(ctx context.Context) (*service.ScanSummary, error) {
	if s.scanFn != nil {
		return s.scanFn(ctx)
	}
	return &service.ScanSummary{}, nil
}

type stubEnrollmentService struct {
	enrollFn      func(ctx context.Context, params service.EnrollParams) (*domain.Enrollment, error)
	getFn         func(ctx context.Context, id string) (*domain.Enrollment, error)
	pauseFn       func(ctx context.Context, id string) error
	resumeFn      func(ctx context.Context, id string) error
	stopFn        func(ctx context.Context, id string) error
	createWatchFn func(ctx context.Context, params service.WatchParams) (*domain.FolderWatch, error)
	listWatchesFn func(ctx context.Context) ([]domain.FolderWatch, error)
	removeWatchFn func(ctx context.Context, id string) error
}

func (s *stubEnrollmentService) Enroll(ctx context.Context, params service.EnrollParams) (*domain.Enrollment, error) {
	if s.enrollFn != nil {
		return s.enrollFn(ctx, params)
	}
	return nil, domain.ErrNotFound
}

func (s *stubEnrollmentService) Get(ctx context.Context, id string) (*domain.Enrollment, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubEnrollmentService) Pause(ctx context.Context, id string) error {
	if s.pauseFn != nil {
		return s.pauseFn(ctx, id)
	}
	return nil
}

func (s *stubEnrollmentService) Resume(ctx context.Context, id string) error {
	if s.resumeFn != nil {
		return s.resumeFn(ctx, id)
	}
	return nil
}

func (s *stubEnrollmentService) Stop(ctx context.Context, id string) error {
	if s.stopFn != nil {
		return s.stopFn(ctx, id)
	}
	return nil
}

func (s *stubEnrollmentService) CreateWatch(ctx context.Context, params service.WatchParams) (*domain.FolderWatch, error) {
	if s.createWatchFn != nil {
		return s.createWatchFn(ctx, params)
	}
	return nil, domain.ErrNotFound
}

func (s *stubEnrollmentService) ListWatches(ctx context.Context) ([]domain.FolderWatch, error) {
	if s.listWatchesFn != nil {
		return s.listWatchesFn(ctx)
	}
	return nil, nil
}

func (s *stubEnrollmentService) RemoveWatch(ctx context.Context, id string) error {
	if s.removeWatchFn != nil {
		return s.removeWatchFn(ctx, id)
	}
	return nil
}

type stubStatusSink struct {
	publishFn func(ctx context.Context, event queue.StatusEvent) error
}

func (s *stubStatusSink) Publish(ctx context.Context, event queue.StatusEvent) error {
	if s.publishFn != nil {
		return s.publishFn(ctx, event)
	}
	return nil
}
