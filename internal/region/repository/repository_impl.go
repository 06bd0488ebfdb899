package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	regiondomain "github.com/gridbill/gridbill/internal/region/domain"
	"gorm.io/gorm"
)

type Repository struct{}

func New() regiondomain.Repository {
	return &Repository{}
}

func (r *Repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*regiondomain.Region, error) {
	var region regiondomain.Region
	err := db.WithContext(ctx).Where("id = ?", id).First(&region).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &region, nil
}

func (r *Repository) Chain(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]regiondomain.Region, error) {
	visited := make(map[snowflake.ID]struct{})
	chain := make([]regiondomain.Region, 0, 4)

	current := id
	for {
		if _, seen := visited[current]; seen {
			ids := make([]snowflake.ID, 0, len(chain)+1)
			for _, region := range chain {
				ids = append(ids, region.ID)
			}
			return nil, &regiondomain.CycleError{Chain: append(ids, current)}
		}
		visited[current] = struct{}{}

		region, err := r.FindByID(ctx, db, current)
		if err != nil {
			return nil, err
		}
		if region == nil {
			if len(chain) == 0 {
				return nil, regiondomain.ErrNotFound
			}
			// Dangling parent pointer: stop at the last resolvable node.
			return chain, nil
		}

		chain = append(chain, *region)
		if region.ParentID == nil {
			return chain, nil
		}
		current = *region.ParentID
	}
}

func (r *Repository) ListSubtree(ctx context.Context, db *gorm.DB, id snowflake.ID) ([]snowflake.ID, error) {
	out := []snowflake.ID{id}
	frontier := []snowflake.ID{id}
	seen := map[snowflake.ID]struct{}{id: {}}

	for len(frontier) > 0 {
		var children []snowflake.ID
		err := db.WithContext(ctx).
			Model(&regiondomain.Region{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error
		if err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, child := range children {
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			out = append(out, child)
			frontier = append(frontier, child)
		}
	}

	return out, nil
}

func (r *Repository) Insert(ctx context.Context, db *gorm.DB, region *regiondomain.Region) error {
	if strings.TrimSpace(region.Code) == "" {
		return regiondomain.ErrInvalidCode
	}
	return db.WithContext(ctx).Create(region).Error
}
