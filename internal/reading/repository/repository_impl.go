package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/gridbill/gridbill/internal/reading/domain"
)

type readingRepository struct{}

// New returns the gorm-backed reading repository.
func New() domain.Repository {
	return &readingRepository{}
}

func (r *readingRepository) Readings(ctx context.Context, db *gorm.DB, meterID snowflake.ID, start, end time.Time) ([]domain.MeterReading, error) {
	var readings []domain.MeterReading
	err := db.WithContext(ctx).
		Where("meter_id = ? AND recorded_at >= ? AND recorded_at <= ?", meterID, start, end).
		Order("recorded_at ASC").
		Find(&readings).Error
	if err != nil {
		return nil, err
	}
	return readings, nil
}

func (r *readingRepository) Insert(ctx context.Context, db *gorm.DB, reading *domain.MeterReading) error {
	if reading.Value < 0 {
		return domain.ErrInvalidReading
	}
	// Registers are cumulative: a new snapshot may not fall below the
	// latest one at or before its timestamp.
	prior, err := r.Latest(ctx, db, reading.MeterID, reading.RecordedAt)
	if err != nil {
		return err
	}
	if prior != nil && reading.Value < prior.Value {
		return domain.ErrOutOfOrder
	}
	return db.WithContext(ctx).Create(reading).Error
}

func (r *readingRepository) BatchInsert(ctx context.Context, db *gorm.DB, readings []domain.MeterReading) error {
	if len(readings) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(readings, 200).Error
}

func (r *readingRepository) Latest(ctx context.Context, db *gorm.DB, meterID snowflake.ID, ts time.Time) (*domain.MeterReading, error) {
	var reading domain.MeterReading
	err := db.WithContext(ctx).
		Where("meter_id = ? AND recorded_at <= ?", meterID, ts).
		Order("recorded_at DESC").
		First(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reading, nil
}
