package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Source yields a meter's readings for a window. The calculator consumes it
// without caring whether readings come from the database or a head-end feed.
type Source interface {
	// Readings returns readings with recorded_at in [start, end], ordered
	// ascending by recorded_at.
	Readings(ctx context.Context, db *gorm.DB, meterID snowflake.ID, start, end time.Time) ([]MeterReading, error)
}

// Repository is the persistence surface for readings.
type Repository interface {
	Source

	// Insert validates the snapshot against the register before writing:
	// negative values fail with ErrInvalidReading, values below the
	// latest prior snapshot with ErrOutOfOrder.
	Insert(ctx context.Context, db *gorm.DB, reading *MeterReading) error
	BatchInsert(ctx context.Context, db *gorm.DB, readings []MeterReading) error

	// Latest returns the most recent reading at or before ts, or nil.
	Latest(ctx context.Context, db *gorm.DB, meterID snowflake.ID, ts time.Time) (*MeterReading, error)
}
