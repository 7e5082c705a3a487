package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-force-assess/internal/store"
)

func testAssets(ids ...string) []store.Asset {
	assets := make([]store.Asset, 0, len(ids))
	for _, id := range ids {
		assets = append(assets, store.Asset{AssetID: id, TenantID: "t1", Hostname: id})
	}
	return assets
}

func edge(source, target string) store.AssetDependency {
	return store.AssetDependency{TenantID: "t1", SourceAssetID: source, TargetAssetID: target, DepType: "network"}
}

func TestBuildGraphDropsUnknownEdges(t *testing.T) {
	g := BuildGraph(testAssets("a", "b"), []store.AssetDependency{
		edge("a", "b"),
		edge("a", "missing"),
		edge("missing", "b"),
	})

	nodes, edges := g.Size()
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, edges)
}

func TestHasCycleDetectsCycle(t *testing.T) {
	g := BuildGraph(testAssets("a", "b", "c", "d"), []store.AssetDependency{
		edge("a", "b"),
		edge("b", "c"),
		edge("c", "a"),
		edge("a", "d"),
	})

	assert.True(t, g.HasCycle())
	assert.Equal(t, []string{"a", "b", "c"}, g.CyclicNodes())
}

func TestHasCycleCleanGraph(t *testing.T) {
	g := BuildGraph(testAssets("a", "b", "c"), []store.AssetDependency{
		edge("a", "b"),
		edge("b", "c"),
		edge("a", "c"),
	})

	assert.False(t, g.HasCycle())
	assert.Empty(t, g.CyclicNodes())
}

func TestBlastRadiusFollowsReverseEdges(t *testing.T) {
	// web -> app -> db: taking down db impacts app and web; taking down web
	// impacts nothing.
	g := BuildGraph(testAssets("web", "app", "db", "island"), []store.AssetDependency{
		edge("web", "app"),
		edge("app", "db"),
	})

	impacted, err := g.BlastRadius("db")
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "web"}, impacted)

	impacted, err = g.BlastRadius("web")
	require.NoError(t, err)
	assert.Empty(t, impacted)

	_, err = g.BlastRadius("nope")
	assert.Error(t, err)
}

func TestMoveGroupsPartitionsComponents(t *testing.T) {
	g := BuildGraph(testAssets("a", "b", "c", "x", "y", "lone"), []store.AssetDependency{
		edge("a", "b"),
		edge("c", "b"),
		edge("x", "y"),
	})

	groups := g.MoveGroups()
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"a", "b", "c"}, groups[0])
	assert.Equal(t, []string{"x", "y"}, groups[1])
	assert.Equal(t, []string{"lone"}, groups[2])
}
