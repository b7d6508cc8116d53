package repository

import (
	"context"
	"errors"

	"github.com/campaignkit/drip-engine/internal/domain"
	"gorm.io/gorm"
)

type CampaignRepository interface {
	// GetWithSteps loads the campaign and its steps in stored order.
	GetWithSteps(ctx context.Context, id string) (*domain.Campaign, error)
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

func (r *GormCampaignRepo) GetWithSteps(ctx context.Context, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var steps []CampaignStepModel
	err = r.db.WithContext(ctx).
		Where("campaign_id = ?", id).
		Order("position ASC").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}

	return campaignModelToDomain(&model, steps), nil
}
