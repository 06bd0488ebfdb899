// Package domain contains the customer accounts that own meters and bills.
// Authentication and role management live outside this service.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Account struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	Email     string        `json:"email" gorm:"type:text;not null;uniqueIndex"`
	Name      string        `json:"name" gorm:"type:text;not null"`
	RegionID  *snowflake.ID `json:"region_id,omitempty" gorm:"index"`
	Active    bool          `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

var ErrNotFound = errors.New("account_not_found")
