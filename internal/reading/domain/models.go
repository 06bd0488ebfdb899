// Package domain contains raw meter readings.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidReading = errors.New("invalid_reading")
	ErrOutOfOrder     = errors.New("reading_out_of_order")
)

// MeterReading is a cumulative register snapshot from one meter.
// Consumption over an interval is the delta between consecutive values.
type MeterReading struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	MeterID    snowflake.ID `json:"meter_id" gorm:"not null;uniqueIndex:idx_meter_recorded,priority:1"`
	Value      float64      `json:"value" gorm:"type:numeric;not null"`
	RecordedAt time.Time    `json:"recorded_at" gorm:"not null;uniqueIndex:idx_meter_recorded,priority:2"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MeterReading) TableName() string { return "meter_readings" }
