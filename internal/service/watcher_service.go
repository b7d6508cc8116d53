package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
	"github.com/campaignkit/drip-engine/internal/observability"
	"github.com/campaignkit/drip-engine/internal/quiet"
	"github.com/campaignkit/drip-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultScanBatch = 500

// ScanSummary reports one pass over the active folder watches.
type ScanSummary struct {
	WatchesScanned int `json:"watchesScanned"`
	Enrolled       int `json:"enrolled"`
	AlreadyKnown   int `json:"alreadyKnown"`
	Deactivated    int `json:"deactivated"`
	Errors         int `json:"errors"`
}

// WatcherService enrolls new folder members into watched campaigns.
type WatcherService struct {
	watches     repository.FolderWatchRepository
	contacts    repository.ContactRepository
	campaigns   repository.CampaignRepository
	enrollments repository.EnrollmentRepository
	quiet       *quiet.Scheduler
	logger      *zap.Logger
	metrics     *observability.Metrics

	batchSize int
	now       func() time.Time
}

func NewWatcherService(
	watches repository.FolderWatchRepository,
	contacts repository.ContactRepository,
	campaigns repository.CampaignRepository,
	enrollments repository.EnrollmentRepository,
	quietScheduler *quiet.Scheduler,
	logger *zap.Logger,
) (*WatcherService, error) {
	if watches == nil {
		return nil, fmt.Errorf("folder watch repository is required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("contact repository is required")
	}
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if enrollments == nil {
		return nil, fmt.Errorf("enrollment repository is required")
	}
	if quietScheduler == nil {
		return nil, fmt.Errorf("quiet-hours scheduler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WatcherService{
		watches:     watches,
		contacts:    contacts,
		campaigns:   campaigns,
		enrollments: enrollments,
		quiet:       quietScheduler,
		logger:      logger,
		batchSize:   defaultScanBatch,
		now:         time.Now,
	}, nil
}

func (s *WatcherService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Scan walks every active watch once. Per-watch failures are absorbed
// into the summary so one broken watch cannot stall the rest.
func (s *WatcherService) Scan(ctx context.Context) (*ScanSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	watches, err := s.watches.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active watches: %w", err)
	}

	summary := &ScanSummary{}
	for i := range watches {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.WatchesScanned++
		if err := s.scanWatch(ctx, &watches[i], summary); err != nil {
			summary.Errors++
			observability.WithContextLogger(s.logger, ctx).Error("folder watch scan failed",
				zap.String("watchId", watches[i].ID),
				zap.String("folderId", watches[i].FolderID),
				zap.Error(err),
			)
		}
	}
	return summary, nil
}

func (s *WatcherService) scanWatch(ctx context.Context, watch *domain.FolderWatch, summary *ScanSummary) error {
	campaign, err := s.campaigns.GetWithSteps(ctx, watch.CampaignID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The campaign is gone; retire the watch instead of failing
			// every scan forever.
			if derr := s.watches.Deactivate(ctx, watch.ID); derr != nil {
				return derr
			}
			summary.Deactivated++
			s.logger.Info("deactivated watch of deleted campaign",
				zap.String("watchId", watch.ID),
				zap.String("campaignId", watch.CampaignID),
			)
			return nil
		}
		return err
	}

	if !campaign.Sendable() {
		if err := s.watches.Deactivate(ctx, watch.ID); err != nil {
			return err
		}
		summary.Deactivated++
		s.logger.Info("deactivated watch of unsendable campaign",
			zap.String("watchId", watch.ID),
			zap.String("campaignId", campaign.ID),
		)
		return nil
	}

	candidates, err := s.contacts.ListUnenrolled(ctx, watch.FolderID, watch.CampaignID, s.batchSize)
	if err != nil {
		return err
	}

	offsets := campaign.EffectiveOffsets()
	for i := range candidates {
		contact := &candidates[i]
		created, err := s.enroll(ctx, watch, campaign, contact, offsets)
		if err != nil {
			return err
		}
		if created {
			summary.Enrolled++
			s.metrics.AddWatcherEnrolled(1)
		} else {
			summary.AlreadyKnown++
		}
	}

	if err := s.watches.MarkScanned(ctx, watch.ID, s.now()); err != nil {
		s.logger.Warn("failed to record watch scan time",
			zap.String("watchId", watch.ID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *WatcherService) enroll(ctx context.Context, watch *domain.FolderWatch, campaign *domain.Campaign, contact *domain.Contact, offsets []int) (bool, error) {
	now := s.now()
	loc := quiet.LocationFor(contact.TimeZone, contact.Region)

	firstDue := domain.StepDueAt(now, offsets[0], loc)
	if watch.StartPolicy == domain.StartNextWindow {
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
		return false, err
	}

	created, err := s.enrollments.CreateIfAbsent(ctx, enrollment)
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Info("enrolled folder contact",
			zap.String("enrollmentId", enrollment.ID),
			zap.String("contactId", contact.ID),
			zap.String("campaignId", campaign.ID),
			zap.String("folderId", watch.FolderID),
			zap.Time("firstDueAt", firstDue),
		)
	}
	return created, nil
}
