package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository loads policies and their rate rules.
type Repository interface {
	// FindByID returns the policy with rules preloaded, or nil when absent.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PricePolicy, error)

	// FindEffective returns the active policies of a single region whose
	// validity overlaps [start, end), rules preloaded, ordered by StartTime.
	FindEffective(ctx context.Context, db *gorm.DB, regionID snowflake.ID, start, end time.Time) ([]PricePolicy, error)

	Insert(ctx context.Context, db *gorm.DB, policy *PricePolicy) error
}
