package repository

import (
	"context"
	"errors"

	"github.com/campaignkit/drip-engine/internal/domain"
	"gorm.io/gorm"
)

type ContactRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Contact, error)
	// ListUnenrolled returns folder members that have no live (active or
	// paused) enrollment for the campaign.
	ListUnenrolled(ctx context.Context, folderID, campaignID string, limit int) ([]domain.Contact, error)
}

type GormContactRepo struct {
	db *gorm.DB
}

func NewGormContactRepo(db *gorm.DB) *GormContactRepo {
	return &GormContactRepo{db: db}
}

func (r *GormContactRepo) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	var model ContactModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return contactModelToDomain(&model), nil
}

func (r *GormContactRepo) ListUnenrolled(ctx context.Context, folderID, campaignID string, limit int) ([]domain.Contact, error) {
	query := r.db.WithContext(ctx).
		Where("folder_id = ? AND opted_out = false", folderID).
		Where(
			"NOT EXISTS (SELECT 1 FROM enrollments e WHERE e.contact_id = contacts.id AND e.campaign_id = ? AND e.status IN ?)",
			campaignID, []domain.EnrollmentStatus{domain.EnrollmentActive, domain.EnrollmentPaused},
		).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []ContactModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	contacts := make([]domain.Contact, 0, len(models))
	for i := range models {
		contacts = append(contacts, *contactModelToDomain(&models[i]))
	}
	return contacts, nil
}
