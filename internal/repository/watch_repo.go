package repository

import (
	"context"
	"errors"
	"time"

	"github.com/campaignkit/drip-engine/internal/domain"
	"gorm.io/gorm"
)

type FolderWatchRepository interface {
	Create(ctx context.Context, w *domain.FolderWatch) error
	ListActive(ctx context.Context) ([]domain.FolderWatch, error)
	List(ctx context.Context) ([]domain.FolderWatch, error)
	Deactivate(ctx context.Context, id string) error
	MarkScanned(ctx context.Context, id string, at time.Time) error
}

var _ FolderWatchRepository = (*GormWatchRepo)(nil)

type GormWatchRepo struct {
	db *gorm.DB
}

func NewGormWatchRepo(db *gorm.DB) *GormWatchRepo {
	return &GormWatchRepo{db: db}
}

func (r *GormWatchRepo) Create(ctx context.Context, w *domain.FolderWatch) error {
	if err := w.Validate(); err != nil {
		return err
	}

	model := watchModelFromDomain(w)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	*w = *watchModelToDomain(model)
	return nil
}

func (r *GormWatchRepo) ListActive(ctx context.Context) ([]domain.FolderWatch, error) {
	return r.list(ctx, true)
}

func (r *GormWatchRepo) List(ctx context.Context) ([]domain.FolderWatch, error) {
	return r.list(ctx, false)
}

func (r *GormWatchRepo) list(ctx context.Context, activeOnly bool) ([]domain.FolderWatch, error) {
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if activeOnly {
		query = query.Where("active = true")
	}

	var models []FolderWatchModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	watches := make([]domain.FolderWatch, 0, len(models))
	for i := range models {
		watches = append(watches, *watchModelToDomain(&models[i]))
	}
	return watches, nil
}

func (r *GormWatchRepo) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&FolderWatchModel{}).
		Where("id = ? AND active = true", id).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormWatchRepo) MarkScanned(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&FolderWatchModel{}).
		Where("id = ?", id).
		Update("last_scan_at", at).Error
}
