package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/gridbill/gridbill/internal/meter/domain"
)

type meterRepository struct{}

// New returns the gorm-backed meter repository.
func New() domain.Repository {
	return &meterRepository{}
}

func (r *meterRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Meter, error) {
	var meter domain.Meter
	err := db.WithContext(ctx).First(&meter, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meter, nil
}

func (r *meterRepository) ListBillable(ctx context.Context, db *gorm.DB, regionIDs []snowflake.ID) ([]domain.Meter, error) {
	q := db.WithContext(ctx).Where("status = ?", domain.StatusNormal)
	if len(regionIDs) > 0 {
		q = q.Where("region_id IN ?", regionIDs)
	}

	var meters []domain.Meter
	if err := q.Order("id ASC").Find(&meters).Error; err != nil {
		return nil, err
	}
	return meters, nil
}

func (r *meterRepository) Insert(ctx context.Context, db *gorm.DB, meter *domain.Meter) error {
	return db.WithContext(ctx).Create(meter).Error
}

func (r *meterRepository) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.MeterStatus) error {
	result := db.WithContext(ctx).
		Model(&domain.Meter{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
