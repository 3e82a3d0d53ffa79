package partition

import (
	"testing"

	"github.com/dukex/flowengine/pkg/engine"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(name string) *models.TaskNode {
	return &models.TaskNode{Name: name, RouteName: models.RouteName(name)}
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, Independent, PolicyFor(engine.Options{IndependentContext: true}))
	assert.Equal(t, Shared, PolicyFor(engine.Options{}))
	assert.Equal(t, "shared", Shared.String())
	assert.Equal(t, "policy(7)", Policy(7).String())
}

func TestPartition_Independent(t *testing.T) {
	root := map[string]any{
		"user":  map[string]any{"name": "ada"},
		"count": float64(1),
	}

	views, err := Partition(root, []*models.TaskNode{task("a"), task("b")}, Independent)
	require.NoError(t, err)
	require.Len(t, views, 2)

	views["a"].Set("count", float64(2))
	views["a"].Snapshot()["user"].(map[string]any)["name"] = "grace"

	count, _ := views["b"].Get("count")
	assert.Equal(t, float64(1), count)
	assert.Equal(t, float64(1), root["count"])

	user, _ := views["b"].Get("user")
	assert.Equal(t, "ada", user.(map[string]any)["name"])
	assert.Equal(t, "ada", root["user"].(map[string]any)["name"])
}

func TestPartition_Shared(t *testing.T) {
	root := map[string]any{"count": float64(1)}

	views, err := Partition(root, []*models.TaskNode{task("a"), task("b")}, Shared)
	require.NoError(t, err)

	views["a"].Set("count", float64(2))

	count, _ := views["b"].Get("count")
	assert.Equal(t, float64(2), count)
	assert.Equal(t, float64(2), root["count"])
}

func TestPartition_SingleTaskShares(t *testing.T) {
	root := map[string]any{}

	views, err := Partition(root, []*models.TaskNode{task("a")}, Independent)
	require.NoError(t, err)

	views["a"].Set("out", "x")

	assert.Equal(t, "x", root["out"])
}

func TestPartition_NestedScopes(t *testing.T) {
	root := map[string]any{"top": "visible"}

	views, err := Partition(root, []*models.TaskNode{task("loop~0-work"), task("loop~1-work"), task("after")}, Independent)
	require.NoError(t, err)

	views["loop~0-work"].Set("item", "first")
	views["loop~1-work"].Set("item", "second")

	_, ok := views["loop~0-work"].Get("top")
	assert.False(t, ok)

	assert.Equal(t, "first", root[ScopeKey("loop~0")].(map[string]any)["item"])
	assert.Equal(t, "second", root[ScopeKey("loop~1")].(map[string]any)["item"])

	_, ok = views["after"].Get(ScopeKey("loop~0"))
	assert.False(t, ok)
	assert.NotContains(t, views["after"].Snapshot(), ScopeKey("loop~0"))

	views["after"].Set(ScopeKey("loop~0"), "clobber")
	assert.IsType(t, map[string]any{}, root[ScopeKey("loop~0")])
}

func TestPartition_CopyFailure(t *testing.T) {
	root := map[string]any{"fn": func() {}}

	_, err := Partition(root, []*models.TaskNode{task("a"), task("b")}, Independent)

	assert.Error(t, err)
}

func TestVisible(t *testing.T) {
	root := map[string]any{"a": 1, ScopeKey("loop~0"): map[string]any{"item": 2}}

	assert.Equal(t, map[string]any{"a": 1}, Visible(root, ""))
	assert.Equal(t, map[string]any{"item": 2}, Visible(root, "loop~0"))
	assert.Empty(t, Visible(root, "loop~5"))
	assert.NotContains(t, root, ScopeKey("loop~5"))
	assert.Len(t, root, 2)
}

func TestSeed(t *testing.T) {
	root := map[string]any{"user": map[string]any{"name": "ada"}, "shared": "parent"}
	root[ScopeKey("loop~0")] = map[string]any{"shared": "own"}

	err := Seed(root, "", "loop~0", map[string]any{"item": "x", "index": 0})
	require.NoError(t, err)

	slice := root[ScopeKey("loop~0")].(map[string]any)
	assert.Equal(t, "own", slice["shared"])
	assert.Equal(t, "x", slice["item"])
	assert.Equal(t, 0, slice["index"])

	slice["user"].(map[string]any)["name"] = "grace"
	assert.Equal(t, "ada", root["user"].(map[string]any)["name"])

	require.NoError(t, Seed(root, "loop~0", "loop~0-inner~0", nil))
	assert.Equal(t, "x", root[ScopeKey("loop~0-inner~0")].(map[string]any)["item"])
}

func TestMerge(t *testing.T) {
	root := map[string]any{}

	Merge(root, task("a"), map[string]any{"out": 1, ScopeKey("x"): "ignored"})
	Merge(root, task("loop~0-work"), map[string]any{"out": 2})

	assert.Equal(t, 1, root["out"])
	assert.NotContains(t, root, ScopeKey("x"))
	assert.Equal(t, 2, root[ScopeKey("loop~0")].(map[string]any)["out"])
}
