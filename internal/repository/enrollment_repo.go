package repository

import (
	"context"
	"errors"
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository interface {
	Create(ctx context.Context, e *domain.Enrollment) error
	// CreateIfAbsent inserts unless a live enrollment for the same
	// (contact, campaign) already exists. Returns false on the duplicate
	// path; concurrent watcher passes therefore cannot create two live
	// enrollments for one pair.
	CreateIfAbsent(ctx context.Context, e *domain.Enrollment) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Enrollment, error)
	GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Enrollment, error)
	// Claim is the atomic compare-and-swap that grants exclusive
	// ownership of one due step. It succeeds only while the row still
	// matches the snapshot the caller read (active, same cursor, still
	// due) and is not freshly claimed by someone else.
	Claim(ctx context.Context, id string, cursor int, now time.Time, claimTTL time.Duration) (bool, error)
	ReleaseClaim(ctx context.Context, id string) error
	// Advance moves the cursor one step forward, persists the next due
	// instant (or completes), and releases the claim, all in one write.
	Advance(ctx context.Context, id string, fromCursor int, nextDueAt *time.Time, completed bool) error
	// Transition applies a status change only when the current status
	// matches from and the move is legal; the claim is released as part
	// of the same write.
	Transition(ctx context.Context, id string, from, to domain.EnrollmentStatus) error
}

type GormEnrollmentRepo struct {
	db *gorm.DB
}

func NewGormEnrollmentRepo(db *gorm.DB) *GormEnrollmentRepo {
	return &GormEnrollmentRepo{db: db}
}

func (r *GormEnrollmentRepo) Create(ctx context.Context, e *domain.Enrollment) error {
	if err := e.Validate(); err != nil {
		return err
	}

	model := enrollmentModelFromDomain(e)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	*e = *enrollmentModelToDomain(model)
	return nil
}

func (r *GormEnrollmentRepo) CreateIfAbsent(ctx context.Context, e *domain.Enrollment) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}

	model := enrollmentModelFromDomain(e)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	*e = *enrollmentModelToDomain(model)
	return true, nil
}

func (r *GormEnrollmentRepo) GetByID(ctx context.Context, id string) (*domain.Enrollment, error) {
	var model EnrollmentModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return enrollmentModelToDomain(&model), nil
}

func (r *GormEnrollmentRepo) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.Enrollment, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND next_due_at IS NOT NULL AND next_due_at <= ?", domain.EnrollmentActive, now).
		Order("next_due_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []EnrollmentModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	enrollments := make([]domain.Enrollment, 0, len(models))
	for i := range models {
		enrollments = append(enrollments, *enrollmentModelToDomain(&models[i]))
	}
	return enrollments, nil
}

func (r *GormEnrollmentRepo) Claim(ctx context.Context, id string, cursor int, now time.Time, claimTTL time.Duration) (bool, error) {
	staleBefore := now.Add(-claimTTL)

	result := r.db.WithContext(ctx).
		Model(&EnrollmentModel{}).
		Where(
			"id = ? AND status = ? AND current_step = ? AND next_due_at IS NOT NULL AND next_due_at <= ? AND (claimed = false OR claimed_at IS NULL OR claimed_at < ?)",
			id, domain.EnrollmentActive, cursor, now, staleBefore,
		).
		Updates(map[string]any{
			"claimed":    true,
			"claimed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *GormEnrollmentRepo) ReleaseClaim(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&EnrollmentModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"claimed":    false,
			"claimed_at": nil,
		}).Error
}

func (r *GormEnrollmentRepo) Advance(ctx context.Context, id string, fromCursor int, nextDueAt *time.Time, completed bool) error {
	updates := map[string]any{
		"current_step": gorm.Expr("current_step + 1"),
		"claimed":      false,
		"claimed_at":   nil,
	}
	if completed {
		updates["status"] = domain.EnrollmentCompleted
		updates["next_due_at"] = nil
	} else {
		updates["next_due_at"] = nextDueAt
	}

	result := r.db.WithContext(ctx).
		Model(&EnrollmentModel{}).
		Where("id = ? AND current_step = ? AND status = ?", id, fromCursor, domain.EnrollmentActive).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormEnrollmentRepo) Transition(ctx context.Context, id string, from, to domain.EnrollmentStatus) error {
	if !from.CanTransitionTo(to) {
		return domain.ErrConflict
	}

	result := r.db.WithContext(ctx).
		Model(&EnrollmentModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"claimed":    false,
			"claimed_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
