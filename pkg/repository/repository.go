package repository

import (
	"context"

	"github.com/gridbill/gridbill/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is the generic store shared by the feature services.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	Create(ctx context.Context, resource *T) error
}
