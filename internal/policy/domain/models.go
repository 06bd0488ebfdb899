// Package domain contains price policies and their rate rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PriceType selects which rate rules apply. It is a closed set; the
// calculator branches on it.
type PriceType string

const (
	PriceTypeLadder    PriceType = "LADDER"
	PriceTypeTimeShare PriceType = "TIME_SHARE"
	PriceTypeCombined  PriceType = "COMBINED"
)

// UsesLadder reports whether ladder rules participate in pricing.
func (t PriceType) UsesLadder() bool {
	return t == PriceTypeLadder || t == PriceTypeCombined
}

// UsesTimeShare reports whether time-of-use rules participate in pricing.
func (t PriceType) UsesTimeShare() bool {
	return t == PriceTypeTimeShare || t == PriceTypeCombined
}

type LadderLevel string

const (
	LadderLow    LadderLevel = "LOW"
	LadderMiddle LadderLevel = "MIDDLE"
	LadderHigh   LadderLevel = "HIGH"
)

type TimePeriod string

const (
	PeriodPeak   TimePeriod = "PEAK"
	PeriodFlat   TimePeriod = "FLAT"
	PeriodValley TimePeriod = "VALLEY"
)

// PricePolicy is a region-scoped tariff valid in [StartTime, EndTime).
// A nil EndTime means open-ended.
type PricePolicy struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	RegionID      snowflake.ID `json:"region_id" gorm:"not null;index"`
	Name          string       `json:"name" gorm:"type:text;not null"`
	PriceType     PriceType    `json:"price_type" gorm:"type:text;not null;default:'COMBINED'"`
	BaseUnitPrice float64      `json:"base_unit_price" gorm:"type:numeric;not null"`
	StartTime     time.Time    `json:"start_time" gorm:"not null;index"`
	EndTime       *time.Time   `json:"end_time,omitempty" gorm:""`
	Active        bool         `json:"active" gorm:"not null"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	LadderRules    []LadderRule    `json:"ladder_rules,omitempty" gorm:"foreignKey:PolicyID"`
	TimeShareRules []TimeShareRule `json:"time_share_rules,omitempty" gorm:"foreignKey:PolicyID"`
}

// TableName sets the database table name.
func (PricePolicy) TableName() string { return "price_policies" }

// LadderRule maps a cumulative-consumption bracket to a price multiplier.
// MaxElectricity nil means the unbounded top tier.
type LadderRule struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	PolicyID       snowflake.ID `json:"policy_id" gorm:"not null;index"`
	Level          LadderLevel  `json:"level" gorm:"type:text;not null"`
	MinElectricity float64      `json:"min_electricity" gorm:"type:numeric;not null"`
	MaxElectricity *float64     `json:"max_electricity,omitempty" gorm:"type:numeric"`
	// Ratio zero is a valid rate (free power); the column carries no
	// default so Create persists it as written.
	Ratio float64 `json:"ratio" gorm:"type:numeric;not null"`
}

// TableName sets the database table name.
func (LadderRule) TableName() string { return "ladder_rules" }

// TimeShareRule maps an hour-of-day window to a price multiplier. The window
// is half-open [StartHour, EndHour) and wraps past midnight when
// StartHour > EndHour. StartHour == EndHour covers the whole day.
type TimeShareRule struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	PolicyID  snowflake.ID `json:"policy_id" gorm:"not null;index"`
	Period    TimePeriod   `json:"period" gorm:"type:text;not null"`
	StartHour int          `json:"start_hour" gorm:"not null"`
	EndHour   int          `json:"end_hour" gorm:"not null"`
	Ratio     float64      `json:"ratio" gorm:"type:numeric;not null"`
}

// TableName sets the database table name.
func (TimeShareRule) TableName() string { return "time_share_rules" }

// ContainsHour reports whether the rule window covers the given hour.
func (r TimeShareRule) ContainsHour(hour int) bool {
	if r.StartHour == r.EndHour {
		return true
	}
	if r.StartHour < r.EndHour {
		return r.StartHour <= hour && hour < r.EndHour
	}
	return hour >= r.StartHour || hour < r.EndHour
}
