package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository holds the bill queries that need raw SQL or row locking; plain
// CRUD goes through the generic store.
type Repository interface {
	// FindByID returns the bill with details preloaded, or nil when absent.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)

	// ClaimDueUnpaid locks and returns up to limit unpaid bills whose due
	// date has passed. Must run inside the caller's transaction; concurrent
	// sweepers skip each other's rows.
	ClaimDueUnpaid(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]Bill, error)

	// ClaimOverdueBefore locks and returns up to limit overdue bills whose
	// overdue_at is at or before cutoff and that have not been flagged for
	// cutoff yet.
	ClaimOverdueBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]Bill, error)

	// MarkOverdue transitions the given bills to overdue, stamping overdue_at.
	MarkOverdue(ctx context.Context, tx *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error)

	// ListOutstanding returns unpaid and overdue bills, optionally limited
	// to accounts in the given regions.
	ListOutstanding(ctx context.Context, db *gorm.DB, regionIDs []snowflake.ID) ([]Bill, error)
}
