package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/gridbill/gridbill/internal/bill/domain"
)

type billRepository struct{}

// NewRepository returns the gorm-backed bill repository.
func NewRepository() domain.Repository {
	return &billRepository{}
}

func (r *billRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Bill, error) {
	var bill domain.Bill
	err := db.WithContext(ctx).
		Preload("Details").
		First(&bill, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *billRepository) ClaimDueUnpaid(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]domain.Bill, error) {
	var bills []domain.Bill
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM bills
		 WHERE status = ? AND due_date < ?
		 ORDER BY id `+lockClause(tx)+`
		 LIMIT ?`,
		domain.StatusUnpaid, now, limit,
	).Scan(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *billRepository) ClaimOverdueBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]domain.Bill, error) {
	var bills []domain.Bill
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM bills
		 WHERE status = ? AND overdue_at <= ? AND cutoff_warned_at IS NULL
		 ORDER BY id `+lockClause(tx)+`
		 LIMIT ?`,
		domain.StatusOverdue, cutoff, limit,
	).Scan(&bills).Error
	if err != nil {
		return nil, err
	}
	return bills, nil
}

func (r *billRepository) MarkOverdue(ctx context.Context, tx *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := tx.WithContext(ctx).
		Model(&domain.Bill{}).
		Where("id IN ? AND status = ?", ids, domain.StatusUnpaid).
		Updates(map[string]any{
			"status":     domain.StatusOverdue,
			"overdue_at": now,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *billRepository) ListOutstanding(ctx context.Context, db *gorm.DB, regionIDs []snowflake.ID) ([]domain.Bill, error) {
	q := db.WithContext(ctx).
		Where("status IN ?", []domain.BillStatus{domain.StatusUnpaid, domain.StatusOverdue})
	if len(regionIDs) > 0 {
		q = q.Where("region_id IN ?", regionIDs)
	}

	var bills []domain.Bill
	if err := q.Order("account_id ASC, due_date ASC").Find(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}

// lockClause returns the row-lock suffix for claim queries. SQLite locks the
// whole database on write so the clause is omitted there.
func lockClause(db *gorm.DB) string {
	if strings.EqualFold(db.Dialector.Name(), "sqlite") {
		return ""
	}
	return "FOR UPDATE SKIP LOCKED"
}
