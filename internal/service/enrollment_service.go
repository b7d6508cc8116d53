package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
	"github.com/campaignkit/drip-engine/internal/quiet"
	"github.com/campaignkit/drip-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnrollParams describe a manual enrollment request.
type EnrollParams struct {
	ContactID   string
	CampaignID  string
	StartPolicy domain.StartPolicy
}

// WatchParams describe a folder watch creation request.
type WatchParams struct {
	FolderID    string
	CampaignID  string
	StartPolicy domain.StartPolicy
}

// EnrollmentService covers the administrative surface: manual enrolls,
// pause and resume, stops, and folder watch management.
type EnrollmentService struct {
	enrollments repository.EnrollmentRepository
	campaigns   repository.CampaignRepository
	contacts    repository.ContactRepository
	watches     repository.FolderWatchRepository
	quiet       *quiet.Scheduler
	logger      *zap.Logger
	now         func() time.Time
}

func NewEnrollmentService(
	enrollments repository.EnrollmentRepository,
	campaigns repository.CampaignRepository,
	contacts repository.ContactRepository,
	watches repository.FolderWatchRepository,
	quietScheduler *quiet.Scheduler,
	logger *zap.Logger,
) (*EnrollmentService, error) {
	if enrollments == nil {
		return nil, fmt.Errorf("enrollment repository is required")
	}
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("contact repository is required")
	}
	if watches == nil {
		return nil, fmt.Errorf("folder watch repository is required")
	}
	if quietScheduler == nil {
		return nil, fmt.Errorf("quiet-hours scheduler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		campaigns:   campaigns,
		contacts:    contacts,
		watches:     watches,
		quiet:       quietScheduler,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Enroll starts a contact on a campaign. A contact already live on the
// campaign yields ErrConflict.
func (s *EnrollmentService) Enroll(ctx context.Context, params EnrollParams) (*domain.Enrollment, error) {
	if params.StartPolicy == "" {
		params.StartPolicy = domain.StartImmediate
	}
	if !params.StartPolicy.IsValid() {
		return nil, fmt.Errorf("%w: invalid start policy %q", domain.ErrValidation, params.StartPolicy)
	}

	contact, err := s.contacts.GetByID(ctx, params.ContactID)
	if err != nil {
		return nil, err
	}
	if contact.OptedOut {
		return nil, fmt.Errorf("%w: contact %s has opted out", domain.ErrValidation, contact.ID)
	}
	if !contact.Reachable() {
		return nil, fmt.Errorf("%w: contact %s has no usable phone number", domain.ErrValidation, contact.ID)
	}

	campaign, err := s.campaigns.GetWithSteps(ctx, params.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Sendable() {
		return nil, fmt.Errorf("%w: campaign %s is not an active sms campaign with steps", domain.ErrValidation, campaign.ID)
	}

	now := s.now()
	loc := quiet.LocationFor(contact.TimeZone, contact.Region)
	firstDue := domain.StepDueAt(now, campaign.EffectiveOffsets()[0], loc)
	if params.StartPolicy == domain.StartNextWindow {
		firstDue = s.quiet.NextAllowed(firstDue, loc)
	}

	enrollment := &domain.Enrollment{
		ID:         uuid.NewString(),
		ContactID:  contact.ID,
		CampaignID: campaign.ID,
		Cursor:     0,
		NextDueAt:  &firstDue,
		Status:     domain.EnrollmentActive,
		StartedAt:  now,
	}
	if err := enrollment.Validate(); err != nil {
		return nil, err
	}

	created, err := s.enrollments.CreateIfAbsent(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("%w: contact %s is already enrolled in campaign %s", domain.ErrConflict, contact.ID, campaign.ID)
	}

	s.logger.Info("enrolled contact",
		zap.String("enrollmentId", enrollment.ID),
		zap.String("contactId", contact.ID),
		zap.String("campaignId", campaign.ID),
		zap.Time("firstDueAt", firstDue),
	)
	return enrollment, nil
}

func (s *EnrollmentService) Get(ctx context.Context, id string) (*domain.Enrollment, error) {
	return s.enrollments.GetByID(ctx, id)
}

// Pause parks an active enrollment. The cursor and schedule are kept, so
// a later resume continues from the same step.
func (s *EnrollmentService) Pause(ctx context.Context, id string) error {
	if err := s.enrollments.Transition(ctx, id, domain.EnrollmentActive, domain.EnrollmentPaused); err != nil {
		return err
	}
	s.logger.Info("paused enrollment", zap.String("enrollmentId", id))
	return nil
}

// Resume reactivates a paused enrollment. A next step already past due
// fires on the following tick.
func (s *EnrollmentService) Resume(ctx context.Context, id string) error {
	if err := s.enrollments.Transition(ctx, id, domain.EnrollmentPaused, domain.EnrollmentActive); err != nil {
		return err
	}
	s.logger.Info("resumed enrollment", zap.String("enrollmentId", id))
	return nil
}

// Stop terminally ends an enrollment from either live state.
func (s *EnrollmentService) Stop(ctx context.Context, id string) error {
	err := s.enrollments.Transition(ctx, id, domain.EnrollmentActive, domain.EnrollmentStopped)
	if errors.Is(err, domain.ErrConflict) {
		err = s.enrollments.Transition(ctx, id, domain.EnrollmentPaused, domain.EnrollmentStopped)
	}
	if err != nil {
		return err
	}
	s.logger.Info("stopped enrollment", zap.String("enrollmentId", id))
	return nil
}

// CreateWatch registers a folder watch after checking the campaign is
// currently sendable.
func (s *EnrollmentService) CreateWatch(ctx context.Context, params WatchParams) (*domain.FolderWatch, error) {
	if params.StartPolicy == "" {
		params.StartPolicy = domain.StartImmediate
	}

	campaign, err := s.campaigns.GetWithSteps(ctx, params.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.Sendable() {
		return nil, fmt.Errorf("%w: campaign %s is not an active sms campaign with steps", domain.ErrValidation, campaign.ID)
	}

	watch := &domain.FolderWatch{
		ID:          uuid.NewString(),
		FolderID:    params.FolderID,
		CampaignID:  params.CampaignID,
		StartPolicy: params.StartPolicy,
		Active:      true,
	}
	if err := watch.Validate(); err != nil {
		return nil, err
	}
	if err := s.watches.Create(ctx, watch); err != nil {
		return nil, err
	}

	s.logger.Info("created folder watch",
		zap.String("watchId", watch.ID),
		zap.String("folderId", watch.FolderID),
		zap.String("campaignId", watch.CampaignID),
	)
	return watch, nil
}

func (s *EnrollmentService) ListWatches(ctx context.Context) ([]domain.FolderWatch, error) {
	return s.watches.List(ctx)
}

// RemoveWatch deactivates a watch; existing enrollments keep running.
func (s *EnrollmentService) RemoveWatch(ctx context.Context, id string) error {
	if err := s.watches.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deactivated folder watch", zap.String("watchId", id))
	return nil
}
