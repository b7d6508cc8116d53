package transport

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campaignkit/drip-engine/internal/domain"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func TestErrorHandler_StatusMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "fiber error keeps its code", err: fiber.NewError(fiber.StatusTeapot, "nope"), wantStatus: fiber.StatusTeapot},
		{name: "validation maps to 400", err: fmt.Errorf("bad enrollment: %w", domain.ErrValidation), wantStatus: http.StatusBadRequest},
		{name: "not found maps to 404", err: fmt.Errorf("enrollment e1: %w", domain.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "conflict maps to 409", err: fmt.Errorf("already enrolled: %w", domain.ErrConflict), wantStatus: http.StatusConflict},
		{name: "unknown error maps to 500", err: fmt.Errorf("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
			app.Get("/boom", func(c *fiber.Ctx) error {
				return tc.err
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status=%d, want=%d", resp.StatusCode, tc.wantStatus)
			}
		})
	}
}
