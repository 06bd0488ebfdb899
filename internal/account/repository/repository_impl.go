package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/gridbill/gridbill/internal/account/domain"
	"gorm.io/gorm"
)

type Repository struct{}

func New() accountdomain.Repository {
	return &Repository{}
}

func (r *Repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *Repository) ListByRegion(ctx context.Context, db *gorm.DB, regionID snowflake.ID) ([]accountdomain.Account, error) {
	var accounts []accountdomain.Account
	err := db.WithContext(ctx).
		Where("region_id = ?", regionID).
		Order("id").
		Find(&accounts).Error
	return accounts, err
}

func (r *Repository) Insert(ctx context.Context, db *gorm.DB, account *accountdomain.Account) error {
	return db.WithContext(ctx).Create(account).Error
}
