package repository

import (
	"context"
	"errors"
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
	"gorm.io/gorm"
)

type DispatchOutcome struct {
	Status            domain.DispatchStatus
	ProviderMessageID *string
	ScheduledFor      *time.Time
	LastError         *string
	SentAt            *time.Time
}

type DispatchLogRepository interface {
	// Create inserts the per-step record; a second insert for the same
	// (enrollment, step) fails with domain.ErrConflict, which is the
	// idempotency signal for a re-attempted tick.
	Create(ctx context.Context, d *domain.DispatchLog) error
	GetByStep(ctx context.Context, enrollmentID string, step int) (*domain.DispatchLog, error)
	RecordOutcome(ctx context.Context, id string, outcome DispatchOutcome) error
	// ApplyProviderStatus updates the record matching a provider message
	// id, used by the delivery-status callback pipeline.
	ApplyProviderStatus(ctx context.Context, providerMessageID string, status domain.DispatchStatus, errMsg *string) error
}

type GormDispatchLogRepo struct {
	db *gorm.DB
}

func NewGormDispatchLogRepo(db *gorm.DB) *GormDispatchLogRepo {
	return &GormDispatchLogRepo{db: db}
}

func (r *GormDispatchLogRepo) Create(ctx context.Context, d *domain.DispatchLog) error {
	if err := d.Validate(); err != nil {
		return err
	}

	model := dispatchModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	*d = *dispatchModelToDomain(model)
	return nil
}

func (r *GormDispatchLogRepo) GetByStep(ctx context.Context, enrollmentID string, step int) (*domain.DispatchLog, error) {
	var model DispatchLogModel
	err := r.db.WithContext(ctx).
		Where("enrollment_id = ? AND step = ?", enrollmentID, step).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return dispatchModelToDomain(&model), nil
}

func (r *GormDispatchLogRepo) RecordOutcome(ctx context.Context, id string, outcome DispatchOutcome) error {
	updates := map[string]any{
		"status":        outcome.Status,
		"attempt_count": gorm.Expr("attempt_count + 1"),
	}
	if outcome.ProviderMessageID != nil {
		updates["provider_message_id"] = outcome.ProviderMessageID
	}
	if outcome.ScheduledFor != nil {
		updates["scheduled_for"] = outcome.ScheduledFor
	}
	if outcome.LastError != nil {
		updates["last_error"] = outcome.LastError
	}
	if outcome.SentAt != nil {
		updates["sent_at"] = outcome.SentAt
	}

	result := r.db.WithContext(ctx).
		Model(&DispatchLogModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormDispatchLogRepo) ApplyProviderStatus(ctx context.Context, providerMessageID string, status domain.DispatchStatus, errMsg *string) error {
	updates := map[string]any{"status": status}
	if errMsg != nil {
		updates["last_error"] = errMsg
	}

	result := r.db.WithContext(ctx).
		Model(&DispatchLogModel{}).
		Where("provider_message_id = ?", providerMessageID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
