package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
	"github.com/campaignkit/drip-engine/internal/service"
	"github.com/gofiber/fiber/v2"
)

type EnrollmentService interface {
	Enroll(ctx context.Context, params service.EnrollParams) (*domain.Enrollment, error)
	Get(ctx context.Context, id string) (*domain.Enrollment, error)
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	CreateWatch(ctx context.Context, params service.WatchParams) (*domain.FolderWatch, error)
	ListWatches(ctx context.Context) ([]domain.FolderWatch, error)
	RemoveWatch(ctx context.Context, id string) error
}

type EnrollmentHandler struct {
	service EnrollmentService
}

func NewEnrollmentHandler(service EnrollmentService) (*EnrollmentHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("enrollment service is required")
	}
	return &EnrollmentHandler{service: service}, nil
}

func RegisterEnrollmentRoutes(router fiber.Router, service EnrollmentService) error {
	h, err := NewEnrollmentHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/enrollments", h.CreateEnrollment)
	v1.Get("/enrollments/:id", h.GetEnrollment)
	v1.Post("/enrollments/:id/pause", h.PauseEnrollment)
	v1.Post("/enrollments/:id/resume", h.ResumeEnrollment)
	v1.Post("/enrollments/:id/stop", h.StopEnrollment)
	v1.Post("/watches", h.CreateWatch)
	v1.Get("/watches", h.ListWatches)
	v1.Delete("/watches/:id", h.RemoveWatch)

	return nil
}

type createEnrollmentRequest struct {
	ContactID   string `json:"contactId"`
	CampaignID  string `json:"campaignId"`
	StartPolicy string `json:"startPolicy"`
}

type createWatchRequest struct {
	FolderID    string `json:"folderId"`
	CampaignID  string `json:"campaignId"`
	StartPolicy string `json:"startPolicy"`
}

type enrollmentResponse struct {
	ID         string     `json:"id"`
	ContactID  string     `json:"contactId"`
	CampaignID string     `json:"campaignId"`
	Step       int        `json:"step"`
	NextDueAt  *time.Time `json:"nextDueAt,omitempty"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	CreatedAt  time.Time  `json:"createdAt,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt,omitempty"`
}

type watchResponse struct {
	ID          string     `json:"id"`
	FolderID    string     `json:"folderId"`
	CampaignID  string     `json:"campaignId"`
	StartPolicy string     `json:"startPolicy"`
	Active      bool       `json:"active"`
	LastScanAt  *time.Time `json:"lastScanAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt,omitempty"`
}

func (h *EnrollmentHandler) CreateEnrollment(c *fiber.Ctx) error {
	var req createEnrollmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	params := service.EnrollParams{
		ContactID:  strings.TrimSpace(req.ContactID),
		CampaignID: strings.TrimSpace(req.CampaignID),
	}
	if params.ContactID == "" {
		return toHTTPError(fmt.Errorf("%w: contactId is required", domain.ErrValidation))
	}
	if params.CampaignID == "" {
		return toHTTPError(fmt.Errorf("%w: campaignId is required", domain.ErrValidation))
	}
	if raw := strings.TrimSpace(req.StartPolicy); raw != "" {
		policy, err := domain.ParseStartPolicyFromString(raw)
		if err != nil {
			return toHTTPError(err)
		}
		params.StartPolicy = policy
	}

	enrollment, err := h.service.Enroll(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toEnrollmentResponse(enrollment))
}

func (h *EnrollmentHandler) GetEnrollment(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	enrollment, err := h.service.Get(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toEnrollmentResponse(enrollment))
}

func (h *EnrollmentHandler) PauseEnrollment(c *fiber.Ctx) error {
	return h.transition(c, h.service.Pause, domain.EnrollmentPaused)
}

func (h *EnrollmentHandler) ResumeEnrollment(c *fiber.Ctx) error {
	return h.transition(c, h.service.Resume, domain.EnrollmentActive)
}

func (h *EnrollmentHandler) StopEnrollment(c *fiber.Ctx) error {
	return h.transition(c, h.service.Stop, domain.EnrollmentStopped)
}

func (h *EnrollmentHandler) transition(c *fiber.Ctx, apply func(context.Context, string) error, result domain.EnrollmentStatus) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := apply(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"enrollmentId": id,
		"status":       result.String(),
	})
}

func (h *EnrollmentHandler) CreateWatch(c *fiber.Ctx) error {
	var req createWatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	params := service.WatchParams{
		FolderID:   strings.TrimSpace(req.FolderID),
		CampaignID: strings.TrimSpace(req.CampaignID),
	}
	if raw := strings.TrimSpace(req.StartPolicy); raw != "" {
		policy, err := domain.ParseStartPolicyFromString(raw)
		if err != nil {
			return toHTTPError(err)
		}
		params.StartPolicy = policy
	}

	watch, err := h.service.CreateWatch(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toWatchResponse(watch))
}

func (h *EnrollmentHandler) ListWatches(c *fiber.Ctx) error {
	watches, err := h.service.ListWatches(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]watchResponse, 0, len(watches))
	for i := range watches {
		responses = append(responses, toWatchResponse(&watches[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *EnrollmentHandler) RemoveWatch(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.RemoveWatch(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"watchId": id,
		"active":  false,
	})
}

func toEnrollmentResponse(e *domain.Enrollment) enrollmentResponse {
	if e == nil {
		return enrollmentResponse{}
	}

	return enrollmentResponse{
		ID:         e.ID,
		ContactID:  e.ContactID,
		CampaignID: e.CampaignID,
		Step:       e.Cursor,
		NextDueAt:  e.NextDueAt,
		Status:     e.Status.String(),
		StartedAt:  e.StartedAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func toWatchResponse(w *domain.FolderWatch) watchResponse {
	if w == nil {
		return watchResponse{}
	}

	return watchResponse{
		ID:          w.ID,
		FolderID:    w.FolderID,
		CampaignID:  w.CampaignID,
		StartPolicy: w.StartPolicy.String(),
		Active:      w.Active,
		LastScanAt:  w.LastScanAt,
		CreatedAt:   w.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
