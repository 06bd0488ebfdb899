package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository reads the region tree. The db handle is passed explicitly so
// callers can run inside their own transaction.
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Region, error)
	// Chain returns the region and its ancestors, nearest first. It fails
	// with *CycleError when a parent pointer loops.
	Chain(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]Region, error)
	// ListSubtree returns the ids of the region and every descendant.
	ListSubtree(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]snowflake.ID, error)
	Insert(ctx context.Context, db *gorm.DB, region *Region) error
}
