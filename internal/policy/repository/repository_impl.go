package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/gridbill/gridbill/internal/policy/domain"
)

type policyRepository struct{}

// NewRepository returns the gorm-backed policy repository.
func NewRepository() domain.Repository {
	return &policyRepository{}
}

func (r *policyRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PricePolicy, error) {
	var policy domain.PricePolicy
	err := db.WithContext(ctx).
		Preload("LadderRules").
		Preload("TimeShareRules").
		First(&policy, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *policyRepository) FindEffective(ctx context.Context, db *gorm.DB, regionID snowflake.ID, start, end time.Time) ([]domain.PricePolicy, error) {
	var policies []domain.PricePolicy
	err := db.WithContext(ctx).
		Preload("LadderRules").
		Preload("TimeShareRules").
		Where("region_id = ? AND active = ?", regionID, true).
		Where("start_time < ?", end).
		Where("end_time IS NULL OR end_time > ?", start).
		Order("start_time ASC").
		Find(&policies).Error
	if err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *policyRepository) Insert(ctx context.Context, db *gorm.DB, policy *domain.PricePolicy) error {
	return db.WithContext(ctx).Create(policy).Error
}
