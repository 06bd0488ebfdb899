package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gridbill/gridbill/internal/policy/domain"
)

func setup(t *testing.T) (domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.PricePolicy{},
		&domain.LadderRule{},
		&domain.TimeShareRule{},
	))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewRepository(), db, node
}

func TestInsert_PersistsZeroValues(t *testing.T) {
	repo, db, node := setup(t)
	ctx := context.Background()

	policy := domain.PricePolicy{
		ID:            node.Generate(),
		RegionID:      node.Generate(),
		Name:          "staged",
		PriceType:     domain.PriceTypeCombined,
		BaseUnitPrice: 0.5,
		StartTime:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:        false,
		LadderRules: []domain.LadderRule{
			{ID: node.Generate(), Level: domain.LadderLow, MinElectricity: 0, Ratio: 0},
		},
		TimeShareRules: []domain.TimeShareRule{
			{ID: node.Generate(), Period: domain.PeriodValley, StartHour: 22, EndHour: 6, Ratio: 0},
		},
	}
	require.NoError(t, repo.Insert(ctx, db, &policy))

	got, err := repo.FindByID(ctx, db, policy.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.False(t, got.Active, "a policy staged inactive must not come back active")
	require.Len(t, got.LadderRules, 1)
	assert.Zero(t, got.LadderRules[0].Ratio, "ratio 0 must persist as 0, not a column default")
	require.Len(t, got.TimeShareRules, 1)
	assert.Zero(t, got.TimeShareRules[0].Ratio, "ratio 0 must persist as 0, not a column default")
}

func TestFindEffective_ExcludesInactive(t *testing.T) {
	repo, db, node := setup(t)
	ctx := context.Background()

	region := node.Generate()
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	active := domain.PricePolicy{
		ID: node.Generate(), RegionID: region, Name: "live",
		PriceType: domain.PriceTypeLadder, BaseUnitPrice: 0.5,
		StartTime: start.AddDate(-1, 0, 0), Active: true,
	}
	require.NoError(t, repo.Insert(ctx, db, &active))
	staged := domain.PricePolicy{
		ID: node.Generate(), RegionID: region, Name: "staged",
		PriceType: domain.PriceTypeLadder, BaseUnitPrice: 0.4,
		StartTime: start.AddDate(-1, 0, 0), Active: false,
	}
	require.NoError(t, repo.Insert(ctx, db, &staged))

	got, err := repo.FindEffective(ctx, db, region, start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)
}
