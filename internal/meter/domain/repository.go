package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository provides meter lookups.
type Repository interface {
	// FindByID returns the meter, or nil when absent.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Meter, error)

	// ListBillable returns meters in NORMAL status, optionally restricted to
	// the given regions. An empty regionIDs slice means all regions.
	ListBillable(ctx context.Context, db *gorm.DB, regionIDs []snowflake.ID) ([]Meter, error)

	Insert(ctx context.Context, db *gorm.DB, meter *Meter) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status MeterStatus) error
}
