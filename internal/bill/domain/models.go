// Package domain contains bills and their itemized details.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"

	policydomain "github.com/gridbill/gridbill/internal/policy/domain"
)

type BillStatus string

const (
	StatusUnpaid  BillStatus = "UNPAID"
	StatusPaid    BillStatus = "PAID"
	StatusOverdue BillStatus = "OVERDUE"
)

// Bill is one meter's charge for one calendar month. BillMonth is always
// normalized to the first day of the month, UTC midnight; the unique index
// on (meter_id, bill_month) is what makes generation idempotent.
type Bill struct {
	ID               snowflake.ID  `json:"id" gorm:"primaryKey"`
	AccountID        snowflake.ID  `json:"account_id" gorm:"not null;index"`
	MeterID          snowflake.ID  `json:"meter_id" gorm:"not null;uniqueIndex:idx_meter_month,priority:1"`
	RegionID         *snowflake.ID `json:"region_id,omitempty" gorm:"index"`
	PolicyID         *snowflake.ID `json:"policy_id,omitempty"`
	BillMonth        time.Time     `json:"bill_month" gorm:"not null;uniqueIndex:idx_meter_month,priority:2"`
	TotalElectricity float64       `json:"total_electricity" gorm:"type:numeric;not null"`
	TotalAmount      float64       `json:"total_amount" gorm:"type:numeric;not null"`
	Status           BillStatus    `json:"status" gorm:"type:text;not null;default:'UNPAID';index"`
	DueDate          time.Time     `json:"due_date" gorm:"not null;index"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	PaymentMethod    string        `json:"payment_method,omitempty" gorm:"type:text"`
	OverdueAt        *time.Time    `json:"overdue_at,omitempty"`
	CutoffWarnedAt   *time.Time    `json:"cutoff_warned_at,omitempty"`
	RefundedAt       *time.Time    `json:"refunded_at,omitempty"`
	RefundReason     string        `json:"refund_reason,omitempty" gorm:"type:text"`
	RefundActor      string        `json:"refund_actor,omitempty" gorm:"type:text"`
	CreatedAt        time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Details []BillDetail `json:"details,omitempty" gorm:"foreignKey:BillID"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// BillDetail is one merged charge line of a bill. Details are written once
// with their owning bill and never updated in place.
type BillDetail struct {
	ID          snowflake.ID             `json:"id" gorm:"primaryKey"`
	BillID      snowflake.ID             `json:"bill_id" gorm:"not null;index"`
	PolicyID    snowflake.ID             `json:"policy_id" gorm:"not null"`
	DetailType  policydomain.PriceType   `json:"detail_type" gorm:"type:text;not null"`
	LadderLevel policydomain.LadderLevel `json:"ladder_level,omitempty" gorm:"type:text"`
	TimePeriod  policydomain.TimePeriod  `json:"time_period,omitempty" gorm:"type:text"`
	Electricity float64                  `json:"electricity" gorm:"type:numeric;not null"`
	UnitPrice   float64                  `json:"unit_price" gorm:"type:numeric;not null"`
	Amount      float64                  `json:"amount" gorm:"type:numeric;not null"`
	CreatedAt   time.Time                `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillDetail) TableName() string { return "bill_details" }

// NormalizeMonth truncates ts to the first day of its month, UTC midnight.
func NormalizeMonth(ts time.Time) time.Time {
	u := ts.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthWindow returns the billing window [monthStart, monthEnd) for the
// month containing ts.
func MonthWindow(ts time.Time) (time.Time, time.Time) {
	start := NormalizeMonth(ts)
	return start, start.AddDate(0, 1, 0)
}
