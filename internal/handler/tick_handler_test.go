package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/campaignkit/drip-engine/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const testCronSecret = "cron-secret-123"

func newTickTestApp(t *testing.T, tick TickRunner, watcher FolderScanner) *fiber.App {
	t.Helper()

	app := newTestApp(t)
	if err := RegisterTickRoutes(app, tick, watcher, testCronSecret, zap.NewNop()); err != nil {
		t.Fatalf("RegisterTickRoutes() error = %v", err)
	}
	return app
}

func TestTickRejectsMissingCredential(t *testing.T) {
	t.Parallel()

	app := newTickTestApp(t, &stubTickRunner{
		runFn: func(ctx context.Context, params service.TickParams) (*service.TickSummary, error) {
			t.Fatal("unauthorized request must not reach the service")
			return nil, nil
		},
	}, &stubFolderScanner{})

	resp, _ := performRequest(t, app, http.MethodPost, "/v1/tick", "", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/tick?token=wrong", "", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for wrong token", resp.StatusCode)
	}
}

func TestTickAcceptsEveryCredentialForm(t *testing.T) {
	t.Parallel()

	app := newTickTestApp(t, &stubTickRunner{}, &stubFolderScanner{})

	resp, _ := performRequest(t, app, http.MethodGet, "/v1/tick?token="+testCronSecret, "", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 for token query", resp.StatusCode)
	}

	for _, header := range []string{"x-cron-token", "x-cron-key"} {
		req := newAuthedRequest(t, http.MethodPost, "/v1/tick")
		req.Header.Del("Authorization")
		req.Header.Set(header, testCronSecret)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200 for %s header", resp.StatusCode, header)
		}
		_ = resp.Body.Close()
	}

	req := newAuthedRequest(t, http.MethodPost, "/v1/tick")
	resp2, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp2.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 for bearer token", resp2.StatusCode)
	}
	_ = resp2.Body.Close()
}

func TestTickPassesParams(t *testing.T) {
	t.Parallel()

	var got service.TickParams
	app := newTickTestApp(t, &stubTickRunner{
		runFn: func(ctx context.Context, params service.TickParams) (*service.TickSummary, error) {
			got = params
			return &service.TickSummary{Checked: 3, Sent: 2}, nil
		},
	}, &stubFolderScanner{})

	resp, body := performRequest(t, app,
		http.MethodPost, "/v1/tick?token="+testCronSecret+"&force=true&dryRun=true&limit=25", "", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	if !got.Force || !got.DryRun || got.Limit != 25 {
		t.Fatalf("params = %+v, want force, dryRun, limit 25", got)
	}

	var payload struct {
		OK      bool                 `json:"ok"`
		Summary *service.TickSummary `json:"summary"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if !payload.OK || payload.Summary == nil || payload.Summary.Sent != 2 {
		t.Fatalf("payload = %+v, want ok with summary", payload)
	}
}

func TestTickInternalFailureReturns200(t *testing.T) {
	t.Parallel()

	app := newTickTestApp(t, &stubTickRunner{
		runFn: func(ctx context.Context, params service.TickParams) (*service.TickSummary, error) {
			return nil, errors.New("claim store unavailable")
		},
	}, &stubFolderScanner{})

	resp, body := performRequest(t, app, http.MethodPost, "/v1/tick?token="+testCronSecret, "", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 even on failure", resp.StatusCode)
	}

	var payload struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if payload.OK || payload.Error == "" {
		t.Fatalf("payload = %+v, want ok=false with error", payload)
	}
}

func TestTickRejectsNegativeLimit(t *testing.T) {
	t.Parallel()

	app := newTickTestApp(t, &stubTickRunner{}, &stubFolderScanner{})
	resp, _ := performRequest(t, app, http.MethodPost, "/v1/tick?token="+testCronSecret+"&limit=-1", "", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for negative limit", resp.StatusCode)
	}
}

func TestWatcherScanEndpoint(t *testing.T) {
	t.Parallel()

	app := newTickTestApp(t, &stubTickRunner{}, &stubFolderScanner{
		scanFn: func(ctx context.Context) (*service.ScanSummary, error) {
			return &service.ScanSummary{WatchesScanned: 2, Enrolled: 5}, nil
		},
	})

	resp, body := performRequest(t, app, http.MethodPost, "/v1/watcher/scan?token="+testCronSecret, "", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		OK      bool                 `json:"ok"`
		Summary *service.ScanSummary `json:"summary"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if !payload.OK || payload.Summary == nil || payload.Summary.Enrolled != 5 {
		t.Fatalf("payload = %+v, want scan summary", payload)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/watcher/scan", "", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without credential", resp.StatusCode)
	}
}

func newAuthedRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()

	req, err := http.NewRequest(method, path, nil)
	if err != nil {
		t.Fatalf("http.NewRequest() error = %v", err)
	}
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+testCronSecret)
	return req
}
