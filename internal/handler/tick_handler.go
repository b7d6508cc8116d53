package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/campaignkit/drip-engine/internal/observability"
	"github.com/campaignkit/drip-engine/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type TickRunner interface {
	Run(ctx context.Context, params service.TickParams) (*service.TickSummary, error)
}

type FolderScanner interface {
	Scan(ctx context.Context) (*service.ScanSummary, error)
}

// TickHandler exposes the cron-triggered tick and watcher endpoints.
type TickHandler struct {
	tick    TickRunner
	watcher FolderScanner
	secret  string
	logger  *zap.Logger
}

func NewTickHandler(tick TickRunner, watcher FolderScanner, secret string, logger *zap.Logger) (*TickHandler, error) {
	if tick == nil {
		return nil, fmt.Errorf("tick runner is required")
	}
	if watcher == nil {
		return nil, fmt.Errorf("folder scanner is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("cron secret is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickHandler{tick: tick, watcher: watcher, secret: secret, logger: logger}, nil
}

func RegisterTickRoutes(router fiber.Router, tick TickRunner, watcher FolderScanner, secret string, logger *zap.Logger) error {
	h, err := NewTickHandler(tick, watcher, secret, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/tick", h.RunTick)
	v1.Post("/tick", h.RunTick)
	v1.Get("/watcher/scan", h.RunScan)
	v1.Post("/watcher/scan", h.RunScan)

	return nil
}

// RunTick executes one tick. Internal failures still return 200 with the
// error in the body so cron schedulers do not retry a partially applied
// run.
func (h *TickHandler) RunTick(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or missing cron credential")
	}

	params := service.TickParams{
		Force:  c.QueryBool("force"),
		DryRun: c.QueryBool("dryRun"),
		Limit:  c.QueryInt("limit", 0),
	}
	if params.Limit < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must not be negative")
	}

	summary, err := h.tick.Run(runContext(c), params)
	if err != nil {
		h.logger.Error("tick run failed", zap.Error(err))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"ok":    false,
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":      true,
		"summary": summary,
	})
}

func (h *TickHandler) RunScan(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or missing cron credential")
	}

	summary, err := h.watcher.Scan(runContext(c))
	if err != nil {
		h.logger.Error("watcher scan failed", zap.Error(err))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"ok":    false,
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":      true,
		"summary": summary,
	})
}

// runContext carries the request id into the service layer so run logs
// can be correlated with the triggering cron call.
func runContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if requestID, ok := c.Locals("requestid").(string); ok && requestID != "" {
		ctx = observability.WithCorrelationID(ctx, requestID)
	}
	return ctx
}

// authorized accepts the shared secret from any of the forms cron
// schedulers send it in: a token query parameter, the x-cron-token or
// x-cron-key headers, or an Authorization bearer token.
func (h *TickHandler) authorized(c *fiber.Ctx) bool {
	candidates := []string{
		c.Query("token"),
		c.Get("x-cron-token"),
		c.Get("x-cron-key"),
	}
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		candidates = append(candidates, strings.TrimPrefix(auth, "Bearer "))
	}

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(h.secret)) == 1 {
			return true
		}
	}
	return false
}
