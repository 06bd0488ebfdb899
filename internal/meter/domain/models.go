// Package domain contains meter records.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound     = errors.New("meter_not_found")
	ErrNotBound     = errors.New("meter_not_bound_to_region")
	ErrNotBillable  = errors.New("meter_not_billable")
	ErrInvalidState = errors.New("invalid_meter_state")
)

type MeterStatus string

const (
	StatusNormal   MeterStatus = "NORMAL"
	StatusAbnormal MeterStatus = "ABNORMAL"
	StatusReplaced MeterStatus = "REPLACED"
	StatusScrapped MeterStatus = "SCRAPPED"
)

// Billable reports whether the meter participates in bill generation.
func (s MeterStatus) Billable() bool {
	return s == StatusNormal
}

// Meter is a physical electricity meter bound to an account and a region.
type Meter struct {
	ID          snowflake.ID  `json:"id" gorm:"primaryKey"`
	Code        string        `json:"code" gorm:"type:text;not null;uniqueIndex"`
	AccountID   *snowflake.ID `json:"account_id,omitempty" gorm:"index"`
	RegionID    *snowflake.ID `json:"region_id,omitempty" gorm:"index"`
	Status      MeterStatus   `json:"status" gorm:"type:text;not null;default:'NORMAL'"`
	InstalledAt time.Time     `json:"installed_at" gorm:"not null"`
	CreatedAt   time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Meter) TableName() string { return "meters" }
