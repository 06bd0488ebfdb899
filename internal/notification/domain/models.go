// Package domain contains notification records and the sink contract.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Kind string

const (
	KindBillGenerated Kind = "BILL_GENERATED"
	KindOverdue       Kind = "OVERDUE_REMINDER"
	KindCutoffWarning Kind = "CUTOFF_WARNING"
	KindArrears       Kind = "ARREARS_SUMMARY"
	KindDebtCleared   Kind = "DEBT_CLEARED"
	KindRefund        Kind = "REFUND"
)

type Severity string

const (
	SeverityNormal Severity = "NORMAL"
	SeverityHigh   Severity = "HIGH"
)

// Notification is one emitted event, persisted for the in-app feed and
// optionally mirrored to email.
type Notification struct {
	ID        snowflake.ID      `json:"id" gorm:"primaryKey"`
	Kind      Kind              `json:"kind" gorm:"type:text;not null;index"`
	Severity  Severity          `json:"severity" gorm:"type:text;not null;default:'NORMAL'"`
	AccountID *snowflake.ID     `json:"account_id,omitempty" gorm:"index"`
	RegionID  *snowflake.ID     `json:"region_id,omitempty" gorm:"index"`
	RelatedID *snowflake.ID     `json:"related_id,omitempty" gorm:"index"`
	Title     string            `json:"title" gorm:"type:text;not null"`
	Body      string            `json:"body" gorm:"type:text;not null"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }

// Sink delivers notifications. Callers treat delivery failures as
// non-fatal; billing state never depends on a notification landing.
type Sink interface {
	Notify(ctx context.Context, db *gorm.DB, n *Notification) error
}
