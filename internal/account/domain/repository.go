package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	ListByRegion(ctx context.Context, db *gorm.DB, regionID snowflake.ID) ([]Account, error)
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
}
