package service

import (
	"context"
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
	"github.com/campaignkit/drip-engine/internal/provider"
	"github.com/campaignkit/drip-engine/internal/queue"
	"github.com/campaignkit/drip-engine/internal/repository"
)

type fakeEnrollmentRepo struct {
	createFn         func(ctx context.Context, e *domain.Enrollment) error
	createIfAbsentFn func(ctx context.Context, e *domain.Enrollment) (bool, error)
	getByIDFn        func(ctx context.Context, id string) (*domain.Enrollment, error)
	getDueFn         func(ctx context.Context, now time.Time, limit int) ([]domain.Enrollment, error)
	claimFn          func(ctx context.Context, id string, cursor int, now time.Time, claimTTL time.Duration) (bool, error)
	releaseClaimFn   func(ctx context.Context, id string) error
	advanceFn        func(ctx context.Context, id string, fromCursor int, nextDueAt *time.Time, completed bool) error
	transitionFn     func(ctx context.Context, id string, from, to domain.EnrollmentStatus) error
}

func (f *fakeEnrollmentRepo) Create(ctx context.Context, e *domain.Enrollment) error {
	if f.createFn != nil {
		return f.createFn(ctx, e)
	}
	return nil
}

func (f *fakeEnrollmentRepo) CreateIfAbsent(ctx context.Context, e *domain.Enrollment) (bool, error) {
	if f.createIfAbsentFn != nil {
		return f.createIfAbsentFn(ctx, e)
	}
	return true, nil
}

func (f *fakeEnrollmentRepo) GetByID(ctx context.Context, id string) (*domain.Enrollment, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEnrollmentRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Enrollment, error) {
	if f.getDueFn != nil {
		return f.getDueFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeEnrollmentRepo) Claim(ctx context.Context, id string, cursor int, now time.Time, claimTTL time.Duration) (bool, error) {
	if f.claimFn != nil {
		return f.claimFn(ctx, id, cursor, now, claimTTL)
	}
	return true, nil
}

func (f *fakeEnrollmentRepo) ReleaseClaim(ctx context.Context, id string) error {
	if f.releaseClaimFn != nil {
		return f.releaseClaimFn(ctx, id)
	}
	return nil
}

func (f *fakeEnrollmentRepo) Advance(ctx context.Context, id string, fromCursor int, nextDueAt *time.Time, completed bool) error {
	if f.advanceFn != nil {
		return f.advanceFn(ctx, id, fromCursor, nextDueAt, completed)
	}
	return nil
}

func (f *fakeEnrollmentRepo) Transition(ctx context.Context, id string, from, to domain.EnrollmentStatus) error {
	if f.transitionFn != nil {
		return f.transitionFn(ctx, id, from, to)
	}
	return nil
}

type fakeCampaignRepo struct {
	getWithStepsFn func(ctx context.Context, id string) (*domain.Campaign, error)
}

func (f *fakeCampaignRepo) GetWithSteps(ctx context.Context, id string) (*domain.Campaign, error) {
	if f.getWithStepsFn != nil {
		return f.getWithStepsFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

type fakeContactRepo struct {
	getByIDFn        func(ctx context.Context, id string) (*domain.Contact, error)
	listUnenrolledFn func(ctx context.Context, folderID, campaignID string, limit int) ([]domain.Contact, error)
}

func (f *fakeContactRepo) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeContactRepo) ListUnenrolled(ctx context.Context, folderID, campaignID string, limit int) ([]domain.Contact, error) {
	if f.listUnenrolledFn != nil {
		return f.listUnenrolledFn(ctx, folderID, campaignID, limit)
	}
	return nil, nil
}

type fakeWatchRepo struct {
	createFn      func(ctx context.Context, w *domain.FolderWatch) error
	listActiveFn  func(ctx context.Context) ([]domain.FolderWatch, error)
	listFn        func(ctx context.Context) ([]domain.FolderWatch, error)
	deactivateFn  func(ctx context.Context, id string) error
	markScannedFn func(ctx context.Context, id string, at time.Time) error
}

func (f *fakeWatchRepo) Create(ctx context.Context, w *domain.FolderWatch) error {
	if f.createFn != nil {
		return f.createFn(ctx, w)
	}
	return nil
}

func (f *fakeWatchRepo) ListActive(ctx context.Context) ([]domain.FolderWatch, error) {
	if f.listActiveFn != nil {
		return f.listActiveFn(ctx)
	}
	return nil, nil
}

func (f *fakeWatchRepo) List(ctx context.Context) ([]domain.FolderWatch, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func (f *fakeWatchRepo) Deactivate(ctx context.Context, id string) error {
	if f.deactivateFn != nil {
		return f.deactivateFn(ctx, id)
	}
	return nil
}

func (f *fakeWatchRepo) MarkScanned(ctx context.Context, id string, at time.Time) error {
	if f.markScannedFn != nil {
		return f.markScannedFn(ctx, id, at)
	}
	return nil
}

type fakeDispatchRepo struct {
	createFn              func(ctx context.Context, d *domain.DispatchLog) error
	getByStepFn           func(ctx context.Context, enrollmentID string, step int) (*domain.DispatchLog, error)
	recordOutcomeFn       func(ctx context.Context, id string, outcome repository.DispatchOutcome) error
	applyProviderStatusFn func(ctx context.Context, providerMessageID string, status domain.DispatchStatus, errMsg *string) error
}

func (f *fakeDispatchRepo) Create(ctx context.Context, d *domain.DispatchLog) error {
	if f.createFn != nil {
		return f.createFn(ctx, d)
	}
	return nil
}

func (f *fakeDispatchRepo) GetByStep(ctx context.Context, enrollmentID string, step int) (*domain.DispatchLog, error) {
	if f.getByStepFn != nil {
		return f.getByStepFn(ctx, enrollmentID, step)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDispatchRepo) RecordOutcome(ctx context.Context, id string, outcome repository.DispatchOutcome) error {
	if f.recordOutcomeFn != nil {
		return f.recordOutcomeFn(ctx, id, outcome)
	}
	return nil
}

func (f *fakeDispatchRepo) ApplyProviderStatus(ctx context.Context, providerMessageID string, status domain.DispatchStatus, errMsg *string) error {
	if f.applyProviderStatusFn != nil {
		return f.applyProviderStatusFn(ctx, providerMessageID, status, errMsg)
	}
	return nil
}

type fakeChannel struct {
	sendFn func(ctx context.Context, req provider.SendRequest) (*provider.SendResponse, error)
}

func (f *fakeChannel) Send(ctx context.Context, req provider.SendRequest) (*provider.SendResponse, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, req)
	}
	return &provider.SendResponse{ProviderMessageID: "msg-1", StatusCode: 202}, nil
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, identity string) error
}

func (f *fakeRateLimiter) Wait(ctx context.Context, identity string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, identity)
	}
	return nil
}

type fakeLocker struct {
	acquireFn func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	releaseFn func(ctx context.Context, key string) error
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, key, ttl)
	}
	return true, nil
}

func (f *fakeLocker) Release(ctx context.Context, key string) error {
	if f.releaseFn != nil {
		return f.releaseFn(ctx, key)
	}
	return nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, event queue.StatusEvent) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, event queue.StatusEvent) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, event)
	}
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.EventHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.EventHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeConsumer) Close() error { return nil }

var (
	_ repository.EnrollmentRepository  = (*fakeEnrollmentRepo)(nil)
	_ repository.CampaignRepository    = (*fakeCampaignRepo)(nil)
	_ repository.ContactRepository     = (*fakeContactRepo)(nil)
	_ repository.FolderWatchRepository = (*fakeWatchRepo)(nil)
	_ repository.DispatchLogRepository = (*fakeDispatchRepo)(nil)
)
