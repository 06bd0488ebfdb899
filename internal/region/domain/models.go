// Package domain contains the region tree used for policy inheritance.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Region is a node in the supply-area tree. A region without policies of its
// own bills against the nearest ancestor that has one.
type Region struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	Code      string        `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name      string        `json:"name" gorm:"type:text;not null"`
	ParentID  *snowflake.ID `json:"parent_id,omitempty" gorm:"index"`
	ManagerID *snowflake.ID `json:"manager_id,omitempty" gorm:"index"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Region) TableName() string { return "regions" }

var (
	ErrNotFound    = errors.New("region_not_found")
	ErrInvalidCode = errors.New("region_invalid_code")
)

// CycleError reports a loop found while walking the parent chain.
type CycleError struct {
	Chain []snowflake.ID
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Chain))
	for _, id := range e.Chain {
		parts = append(parts, id.String())
	}
	return fmt.Sprintf("region hierarchy cycle: %s", strings.Join(parts, " -> "))
}
