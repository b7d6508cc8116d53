package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campaignkit/drip-engine/internal/queue"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StatusSink accepts a provider delivery-status event for processing.
type StatusSink interface {
	Publish(ctx context.Context, event queue.StatusEvent) error
}

// CallbackHandler receives provider delivery-status callbacks.
type CallbackHandler struct {
	sink   StatusSink
	logger *zap.Logger
}

func NewCallbackHandler(sink StatusSink, logger *zap.Logger) (*CallbackHandler, error) {
	if sink == nil {
		return nil, fmt.Errorf("status sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackHandler{sink: sink, logger: logger}, nil
}

func RegisterCallbackRoutes(router fiber.Router, sink StatusSink, logger *zap.Logger) error {
	h, err := NewCallbackHandler(sink, logger)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/delivery/callback", h.DeliveryCallback)

	return nil
}

// deliveryCallbackRequest covers both the form-encoded shape SMS
// providers post and a plain JSON equivalent.
type deliveryCallbackRequest struct {
	MessageSid    string `json:"messageSid" form:"MessageSid"`
	SmsSid        string `json:"smsSid" form:"SmsSid"`
	MessageStatus string `json:"messageStatus" form:"MessageStatus"`
	SmsStatus     string `json:"smsStatus" form:"SmsStatus"`
	ErrorCode     string `json:"errorCode" form:"ErrorCode"`
}

func (h *CallbackHandler) DeliveryCallback(c *fiber.Ctx) error {
	var req deliveryCallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid callback body")
	}

	messageID := strings.TrimSpace(req.MessageSid)
	if messageID == "" {
		messageID = strings.TrimSpace(req.SmsSid)
	}
	status := strings.TrimSpace(req.MessageStatus)
	if status == "" {
		status = strings.TrimSpace(req.SmsStatus)
	}
	if messageID == "" || status == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message id and status are required")
	}

	event := queue.StatusEvent{
		ProviderMessageID: messageID,
		MessageStatus:     status,
		ErrorCode:         strings.TrimSpace(req.ErrorCode),
		OccurredAt:        time.Now().UTC(),
	}

	if err := h.sink.Publish(c.Context(), event); err != nil {
		h.logger.Error("failed to accept delivery-status callback",
			zap.String("providerMessageId", messageID),
			zap.Error(err),
		)
		return fiber.NewError(fiber.StatusServiceUnavailable, "callback could not be accepted")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
