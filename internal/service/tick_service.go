package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
	"github.com/campaignkit/drip-engine/internal/lock"
	"github.com/campaignkit/drip-engine/internal/observability"
	"github.com/campaignkit/drip-engine/internal/provider"
	"github.com/campaignkit/drip-engine/internal/quiet"
	"github.com/campaignkit/drip-engine/internal/ratelimit"
	"github.com/campaignkit/drip-engine/internal/render"
	"github.com/campaignkit/drip-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// tickLockKey guards against overlapping ticks. The lock is a
	// throughput optimization only; correctness comes from the
	// per-enrollment claim, never from this lock, since its TTL can
	// expire mid-run.
	tickLockKey = "lock:tick"
	tickLockTTL = 60 * time.Second

	minTickConcurrency = 1
	defaultClaimTTL    = 2 * time.Minute
	defaultTickBudget  = 5 * time.Minute
)

// TickParams are the optional knobs of one tick run.
type TickParams struct {
	// Force bypasses the soft tick lock.
	Force bool
	// DryRun computes claims, eligibility, and scheduling but neither
	// dispatches nor advances any enrollment.
	DryRun bool
	// Limit caps enrollments examined this tick; zero means unbounded.
	Limit int
}

// TickSummary is the aggregate result reported back to the trigger.
type TickSummary struct {
	Checked     int    `json:"checked"`
	Sent        int    `json:"sent"`
	Scheduled   int    `json:"scheduled"`
	Suppressed  int    `json:"suppressed"`
	Failed      int    `json:"failed"`
	Completed   int    `json:"completed"`
	ClaimMisses int    `json:"claimMisses"`
	Skipped     bool   `json:"skipped,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

type stepResult struct {
	claimMiss  bool
	sent       bool
	scheduled  bool
	suppressed bool
	failed     bool
	completed  bool
	errMsg     string
}

// TickService is the engine entry point: it claims due enrollments,
// dispatches their current step, and advances or retires them.
type TickService struct {
	enrollments repository.EnrollmentRepository
	campaigns   repository.CampaignRepository
	contacts    repository.ContactRepository
	dispatches  repository.DispatchLogRepository
	channel     provider.Channel
	limiter     ratelimit.RateLimiter
	locker      lock.Locker
	quiet       *quiet.Scheduler
	renderer    render.Renderer
	logger      *zap.Logger
	metrics     *observability.Metrics

	concurrency   int
	claimTTL      time.Duration
	budget        time.Duration
	defaultSender string
	now           func() time.Time
}

func NewTickService(
	enrollments repository.EnrollmentRepository,
	campaigns repository.CampaignRepository,
	contacts repository.ContactRepository,
	dispatches repository.DispatchLogRepository,
	channel provider.Channel,
	limiter ratelimit.RateLimiter,
	locker lock.Locker,
	quietScheduler *quiet.Scheduler,
	renderer render.Renderer,
	concurrency int,
	claimTTL time.Duration,
	budget time.Duration,
	logger *zap.Logger,
) (*TickService, error) {
	if enrollments == nil {
		return nil, fmt.Errorf("enrollment repository is required")
	}
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("contact repository is required")
	}
	if dispatches == nil {
		return nil, fmt.Errorf("dispatch log repository is required")
	}
	if channel == nil {
		return nil, fmt.Errorf("delivery channel is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker is required")
	}
	if quietScheduler == nil {
		return nil, fmt.Errorf("quiet-hours scheduler is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if concurrency < minTickConcurrency {
		concurrency = minTickConcurrency
	}
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	if budget <= 0 {
		budget = defaultTickBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TickService{
		enrollments: enrollments,
		campaigns:   campaigns,
		contacts:    contacts,
		dispatches:  dispatches,
		channel:     channel,
		limiter:     limiter,
		locker:      locker,
		quiet:       quietScheduler,
		renderer:    renderer,
		logger:      logger,
		concurrency: concurrency,
		claimTTL:    claimTTL,
		budget:      budget,
		now:         time.Now,
	}, nil
}

func (s *TickService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// SetDefaultSender sets the sender id used for campaigns that carry none.
func (s *TickService) SetDefaultSender(sender string) {
	if s == nil {
		return
	}
	s.defaultSender = sender
}

// Run executes one tick. Per-enrollment failures are absorbed into the
// summary; only claim-infrastructure failures propagate as an error,
// because proceeding without concurrency protection risks double sends.
func (s *TickService) Run(ctx context.Context, params TickParams) (*TickSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := s.now()
	summary := &TickSummary{}

	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	logger := observability.WithContextLogger(s.logger, ctx)

	if !params.Force {
		acquired, err := s.locker.Acquire(ctx, tickLockKey, tickLockTTL)
		if err != nil {
			return nil, fmt.Errorf("claim store unavailable: %w", err)
		}
		if !acquired {
			summary.Skipped = true
			return summary, nil
		}
		defer func() {
			if err := s.locker.Release(context.Background(), tickLockKey); err != nil {
				logger.Warn("failed to release tick lock", zap.Error(err))
			}
		}()
	}

	due, err := s.enrollments.GetDue(ctx, s.now(), params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due enrollments: %w", err)
	}

	var mu sync.Mutex
	apply := func(res stepResult) {
		mu.Lock()
		defer mu.Unlock()

		summary.Checked++
		if res.claimMiss {
			summary.ClaimMisses++
			s.metrics.IncClaimMiss()
		}
		if res.sent {
			summary.Sent++
			s.metrics.IncEnrollmentOutcome("sent")
		}
		if res.scheduled {
			summary.Scheduled++
			s.metrics.IncEnrollmentOutcome("scheduled")
		}
		if res.suppressed {
			summary.Suppressed++
			s.metrics.IncEnrollmentOutcome("suppressed")
		}
		if res.failed {
			summary.Failed++
			s.metrics.IncEnrollmentOutcome("failed")
		}
		if res.completed {
			summary.Completed++
			s.metrics.IncEnrollmentOutcome("completed")
		}
		if res.errMsg != "" {
			summary.LastError = res.errMsg
		}
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range due {
		enrollment := due[i]

		// Enrollments not started before the budget runs out are left
		// for the next tick.
		if groupCtx.Err() != nil {
			break
		}

		g.Go(func() error {
			s.metrics.IncTickInFlight()
			defer s.metrics.DecTickInFlight()

			res, err := s.processEnrollment(groupCtx, &enrollment, params.DryRun)
			if err != nil {
				return err
			}
			apply(res)
			return nil
		})
	}

	runErr := g.Wait()
	s.metrics.ObserveTick(s.now().Sub(start))

	if runErr != nil && !errors.Is(runErr, context.DeadlineExceeded) && !errors.Is(runErr, context.Canceled) {
		return summary, runErr
	}
	return summary, nil
}

func (s *TickService) processEnrollment(ctx context.Context, e *domain.Enrollment, dryRun bool) (stepResult, error) {
	var res stepResult
	now := s.now()

	claimed, err := s.enrollments.Claim(ctx, e.ID, e.Cursor, now, s.claimTTL)
	if err != nil {
		return res, fmt.Errorf("failed to claim enrollment %s: %w", e.ID, err)
	}
	if !claimed {
		// Another tick owns this enrollment, or it moved on between the
		// due query and the claim. Not an error.
		res.claimMiss = true
		return res, nil
	}

	release := func() {
		if err := s.enrollments.ReleaseClaim(ctx, e.ID); err != nil {
			s.logger.Warn("failed to release enrollment claim; TTL will recover it",
				zap.String("enrollmentId", e.ID),
				zap.Error(err),
			)
		}
	}

	campaign, err := s.campaigns.GetWithSteps(ctx, e.CampaignID)
	if err != nil {
		release()
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("enrollment references missing campaign",
				zap.String("enrollmentId", e.ID),
				zap.String("campaignId", e.CampaignID),
			)
			res.suppressed = true
			return res, nil
		}
		res.failed = true
		res.errMsg = err.Error()
		return res, nil
	}

	if !campaign.Sendable() {
		release()
		s.logger.Info("skipping enrollment of inactive or non-sms campaign",
			zap.String("enrollmentId", e.ID),
			zap.String("campaignId", campaign.ID),
		)
		res.suppressed = true
		return res, nil
	}

	if e.Cursor >= len(campaign.Steps) {
		// The template shrank under this enrollment; close it out.
		if err := s.enrollments.Transition(ctx, e.ID, domain.EnrollmentActive, domain.EnrollmentCompleted); err != nil {
			s.logger.Warn("failed to complete out-of-range enrollment",
				zap.String("enrollmentId", e.ID),
				zap.Error(err),
			)
			release()
			return res, nil
		}
		res.completed = true
		return res, nil
	}

	// Fresh read: opt-out may have flipped after the due query.
	contact, err := s.contacts.GetByID(ctx, e.ContactID)
	if err != nil {
		release()
		if errors.Is(err, domain.ErrNotFound) {
			res.suppressed = true
			return res, nil
		}
		res.failed = true
		res.errMsg = err.Error()
		return res, nil
	}

	if contact.OptedOut {
		if err := s.enrollments.Transition(ctx, e.ID, domain.EnrollmentActive, domain.EnrollmentStopped); err != nil {
			s.logger.Warn("failed to stop opted-out enrollment",
				zap.String("enrollmentId", e.ID),
				zap.Error(err),
			)
			release()
		}
		res.suppressed = true
		return res, nil
	}

	if !contact.Reachable() {
		release()
		s.logger.Warn("contact has no usable phone number",
			zap.String("enrollmentId", e.ID),
			zap.String("contactId", contact.ID),
		)
		res.suppressed = true
		return res, nil
	}

	body, err := s.renderer.Render(campaign.Steps[e.Cursor].Body, contact)
	if err != nil {
		release()
		s.logger.Error("failed to render step body",
			zap.String("enrollmentId", e.ID),
			zap.Int("step", e.Cursor),
			zap.Error(err),
		)
		res.failed = true
		res.errMsg = err.Error()
		return res, nil
	}

	loc := quiet.LocationFor(contact.TimeZone, contact.Region)
	sendAt, deferred := s.quiet.EffectiveSendTime(now, loc)
	var scheduledAt *time.Time
	if deferred {
		at := sendAt
		scheduledAt = &at
	}

	if dryRun {
		release()
		if scheduledAt != nil {
			res.scheduled = true
		} else {
			res.sent = true
		}
		return res, nil
	}

	dueAt := now
	if e.NextDueAt != nil {
		dueAt = *e.NextDueAt
	}

	dispatch, err := s.ensureDispatchLog(ctx, e, dueAt)
	if err != nil {
		release()
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent attempt won the insert.
			res.claimMiss = true
			return res, nil
		}
		res.failed = true
		res.errMsg = err.Error()
		return res, nil
	}

	if dispatch.Status.Handled() {
		// A previous attempt already reached the provider; advance
		// without a second send.
		s.logger.Info("step already dispatched, advancing",
			zap.String("enrollmentId", e.ID),
			zap.Int("step", e.Cursor),
		)
		s.advance(ctx, e, campaign, loc, &res)
		return res, nil
	}

	sender := campaign.SenderID
	if sender == "" {
		sender = s.defaultSender
	}

	if err := s.limiter.Wait(ctx, sender); err != nil {
		release()
		res.failed = true
		res.errMsg = err.Error()
		return res, nil
	}

	dispatchStart := s.now()
	resp, sendErr := s.channel.Send(ctx, provider.SendRequest{
		To:             contact.Phone,
		From:           sender,
		Body:           body,
		ScheduledAt:    scheduledAt,
		IdempotencyKey: dispatch.IdempotencyKey,
	})
	s.metrics.ObserveDispatchDuration(s.now().Sub(dispatchStart))

	if sendErr != nil && !provider.IsDuplicate(sendErr) {
		// Recoverable: the claim is released without advancing, so the
		// same step retries on a later tick with the same key.
		msg := sendErr.Error()
		if err := s.dispatches.RecordOutcome(ctx, dispatch.ID, repository.DispatchOutcome{
			Status:    domain.DispatchFailed,
			LastError: &msg,
		}); err != nil {
			s.logger.Error("failed to record dispatch failure",
				zap.String("enrollmentId", e.ID),
				zap.Error(err),
			)
		}
		release()
		res.failed = true
		res.errMsg = msg
		return res, nil
	}

	status := domain.DispatchSent
	outcome := repository.DispatchOutcome{ScheduledFor: scheduledAt}
	if scheduledAt != nil {
		status = domain.DispatchScheduled
	}
	if sendErr == nil && resp != nil {
		if resp.ProviderMessageID != "" {
			id := resp.ProviderMessageID
			outcome.ProviderMessageID = &id
		}
		if resp.ScheduledAt != nil {
			outcome.ScheduledFor = resp.ScheduledAt
		}
	}
	sentAt := s.now()
	outcome.Status = status
	outcome.SentAt = &sentAt

	if err := s.dispatches.RecordOutcome(ctx, dispatch.ID, outcome); err != nil {
		// The provider accepted the message; advance anyway so the step
		// is not sent twice, and let the log catch up via callbacks.
		s.logger.Error("failed to record dispatch outcome",
			zap.String("enrollmentId", e.ID),
			zap.Error(err),
		)
	}

	if status == domain.DispatchScheduled {
		res.scheduled = true
	} else {
		res.sent = true
	}
	s.advance(ctx, e, campaign, loc, &res)
	return res, nil
}

// ensureDispatchLog loads or creates the idempotency record for the
// current step.
func (s *TickService) ensureDispatchLog(ctx context.Context, e *domain.Enrollment, dueAt time.Time) (*domain.DispatchLog, error) {
	existing, err := s.dispatches.GetByStep(ctx, e.ID, e.Cursor)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	dispatch := &domain.DispatchLog{
		ID:             uuid.NewString(),
		EnrollmentID:   e.ID,
		Step:           e.Cursor,
		DueAt:          dueAt,
		IdempotencyKey: domain.DispatchIdempotencyKey(e.ID, e.Cursor, dueAt),
		Status:         domain.DispatchPending,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.dispatches.Create(ctx, dispatch); err != nil {
		return nil, err
	}
	return dispatch, nil
}

// advance moves the cursor one step and schedules the next one, or
// completes the enrollment past the last step. The write also releases
// the claim.
func (s *TickService) advance(ctx context.Context, e *domain.Enrollment, campaign *domain.Campaign, loc *time.Location, res *stepResult) {
	next := e.Cursor + 1

	if next >= len(campaign.Steps) {
		if err := s.enrollments.Advance(ctx, e.ID, e.Cursor, nil, true); err != nil {
			s.logger.Error("failed to complete enrollment",
				zap.String("enrollmentId", e.ID),
				zap.Error(err),
			)
			return
		}
		res.completed = true
		return
	}

	offsets := campaign.EffectiveOffsets()
	nextDue := domain.StepDueAt(e.StartedAt, offsets[next], loc)
	if err := s.enrollments.Advance(ctx, e.ID, e.Cursor, &nextDue, false); err != nil {
		s.logger.Error("failed to advance enrollment",
			zap.String("enrollmentId", e.ID),
			zap.Int("fromStep", e.Cursor),
			zap.Error(err),
		)
	}
}
