package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	regiondomain "github.com/gridbill/gridbill/internal/region/domain"
)

func setup(t *testing.T) (regiondomain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&regiondomain.Region{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(), db, node
}

func TestChain_NearestFirst(t *testing.T) {
	repo, db, node := setup(t)
	ctx := context.Background()

	root := regiondomain.Region{ID: node.Generate(), Code: "prov", Name: "Province"}
	require.NoError(t, repo.Insert(ctx, db, &root))
	city := regiondomain.Region{ID: node.Generate(), Code: "city", Name: "City", ParentID: &root.ID}
	require.NoError(t, repo.Insert(ctx, db, &city))
	block := regiondomain.Region{ID: node.Generate(), Code: "block", Name: "Block", ParentID: &city.ID}
	require.NoError(t, repo.Insert(ctx, db, &block))

	chain, err := repo.Chain(ctx, db, block.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, block.ID, chain[0].ID)
	assert.Equal(t, city.ID, chain[1].ID)
	assert.Equal(t, root.ID, chain[2].ID)
}

func TestChain_DetectsCycle(t *testing.T) {
	repo, db, node := setup(t)
	ctx := context.Background()

	a := regiondomain.Region{ID: node.Generate(), Code: "a", Name: "A"}
	require.NoError(t, repo.Insert(ctx, db, &a))
	b := regiondomain.Region{ID: node.Generate(), Code: "b", Name: "B", ParentID: &a.ID}
	require.NoError(t, repo.Insert(ctx, db, &b))

	// corrupt the tree: a's parent becomes b
	require.NoError(t, db.Model(&regiondomain.Region{}).Where("id = ?", a.ID).
		Update("parent_id", b.ID).Error)

	_, err := repo.Chain(ctx, db, b.ID)
	var cycle *regiondomain.CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Contains(t, cycle.Chain, a.ID)
	assert.Contains(t, cycle.Chain, b.ID)
}

func TestChain_UnknownRegion(t *testing.T) {
	repo, db, node := setup(t)

	_, err := repo.Chain(context.Background(), db, node.Generate())
	assert.ErrorIs(t, err, regiondomain.ErrNotFound)
}

func TestChain_DanglingParentStopsWalk(t *testing.T) {
	repo, db, node := setup(t)
	ctx := context.Background()

	ghost := node.Generate()
	leaf := regiondomain.Region{ID: node.Generate(), Code: "leaf", Name: "Leaf", ParentID: &ghost}
	require.NoError(t, repo.Insert(ctx, db, &leaf))

	chain, err := repo.Chain(ctx, db, leaf.ID)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, leaf.ID, chain[0].ID)
}

func TestInsert_RejectsBlankCode(t *testing.T) {
	repo, db, node := setup(t)

	err := repo.Insert(context.Background(), db, &regiondomain.Region{
		ID: node.Generate(), Code: "  ", Name: "Nameless",
	})
	assert.ErrorIs(t, err, regiondomain.ErrInvalidCode)
}

func TestListSubtree(t *testing.T) {
	repo, db, node := setup(t)
	ctx := context.Background()

	root := regiondomain.Region{ID: node.Generate(), Code: "r", Name: "Root"}
	require.NoError(t, repo.Insert(ctx, db, &root))
	left := regiondomain.Region{ID: node.Generate(), Code: "l", Name: "Left", ParentID: &root.ID}
	require.NoError(t, repo.Insert(ctx, db, &left))
	right := regiondomain.Region{ID: node.Generate(), Code: "rt", Name: "Right", ParentID: &root.ID}
	require.NoError(t, repo.Insert(ctx, db, &right))
	grandchild := regiondomain.Region{ID: node.Generate(), Code: "g", Name: "Grand", ParentID: &left.ID}
	require.NoError(t, repo.Insert(ctx, db, &grandchild))

	other := regiondomain.Region{ID: node.Generate(), Code: "o", Name: "Other"}
	require.NoError(t, repo.Insert(ctx, db, &other))

	ids, err := repo.ListSubtree(ctx, db, root.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{root.ID, left.ID, right.ID, grandchild.ID}, ids)
}
