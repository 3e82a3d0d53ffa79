package file

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(id string, status models.Status, updated time.Time) *models.ExecutionGraph {
	return &models.ExecutionGraph{
		ExecutionID: id,
		Status:      status,
		Definition:  &models.GraphDefinition{Name: "sample"},
		Tasks: map[string]*models.TaskNode{
			"fetch": {
				Name:       "fetch",
				Definition: &models.TaskDefinition{Name: "fetch", Category: models.CategoryCompute},
				Status:     models.StatusSucceeded,
			},
			"loop": {
				Name:       "loop",
				Definition: &models.TaskDefinition{Name: "loop", Category: models.CategoryForeach},
				Status:     models.StatusRunning,
				Children: map[string]*models.TaskNode{
					"loop~0-work": {
						Name:       "loop~0-work",
						RouteName:  "loop~0",
						Parent:     "loop",
						Definition: &models.TaskDefinition{Name: "work", Category: models.CategoryCompute},
						Status:     models.StatusRunning,
					},
				},
				SubGroupStatus: map[string]models.Status{"0": models.StatusRunning},
			},
		},
		Context:   map[string]any{"user": "ana"},
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	return NewStore("file://"+t.TempDir(), slog.Default())
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	graph := newTestGraph("exec-1", models.StatusRunning, time.Now().UTC())
	require.NoError(t, store.Save(ctx, graph))

	loaded, err := store.Load(ctx, "exec-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRunning, loaded.Status)
	assert.Equal(t, "ana", loaded.Context["user"])

	task, ok := loaded.Lookup("loop~0-work")
	require.True(t, ok)
	assert.Equal(t, models.StatusRunning, task.Status)
	assert.Equal(t, "loop", task.Parent)
}

func TestStore_LoadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsGraphNotFound(err))
}

func TestStore_RejectsPathTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"../etc/passwd", "a/b", "a\\b", ""} {
		_, err := store.Load(context.Background(), id)
		assert.Error(t, err, id)
		assert.False(t, persistence.IsGraphNotFound(err), id)
	}
}

func TestStore_SaveRejectsDuplicateNames(t *testing.T) {
	store := newTestStore(t)

	graph := newTestGraph("exec-dup", models.StatusRunning, time.Now())
	graph.Tasks["loop~0-work"] = &models.TaskNode{Name: "loop~0-work"}

	err := store.Save(context.Background(), graph)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDuplicateTaskName)

	_, err = store.Load(context.Background(), "exec-dup")
	assert.True(t, persistence.IsGraphNotFound(err))
}

func TestStore_SaveTasks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Save(ctx, newTestGraph("exec-2", models.StatusRunning, time.Now())))

	updated := &models.TaskNode{
		Name:       "loop~0-work",
		RouteName:  "loop~0",
		Parent:     "loop",
		Definition: &models.TaskDefinition{Name: "work", Category: models.CategoryCompute},
		Status:     models.StatusSucceeded,
	}
	require.NoError(t, store.SaveTasks(ctx, "exec-2", []*models.TaskNode{updated}))

	loaded, err := store.Load(ctx, "exec-2")
	require.NoError(t, err)

	task, ok := loaded.Lookup("loop~0-work")
	require.True(t, ok)
	assert.Equal(t, models.StatusSucceeded, task.Status)

	err = store.SaveTasks(ctx, "exec-2", []*models.TaskNode{{Name: "ghost"}})
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
}

func TestStore_Expire(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, store.Save(ctx, newTestGraph("old-done", models.StatusSucceeded, old)))
	require.NoError(t, store.Save(ctx, newTestGraph("old-failed", models.StatusFailed, old)))
	require.NoError(t, store.Save(ctx, newTestGraph("old-running", models.StatusRunning, old)))
	require.NoError(t, store.Save(ctx, newTestGraph("new-done", models.StatusSucceeded, time.Now())))

	removed, err := store.Expire(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Load(ctx, "old-done")
	assert.True(t, persistence.IsGraphNotFound(err))

	_, err = store.Load(ctx, "old-running")
	assert.NoError(t, err)

	_, err = store.Load(ctx, "new-done")
	assert.NoError(t, err)
}

func TestStore_ExpireEmptyRoot(t *testing.T) {
	store := newTestStore(t)

	removed, err := store.Expire(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Save(ctx, newTestGraph("exec-3", models.StatusSucceeded, time.Now())))
	require.NoError(t, store.Delete(ctx, "exec-3"))
	require.NoError(t, store.Delete(ctx, "exec-3"))

	_, err := os.Stat(filepath.Join(store.root, graphsDir, "exec-3.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_HealthCheck(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))

	missing := NewStore(filepath.Join(t.TempDir(), "nope"), slog.Default())
	assert.Error(t, missing.HealthCheck(context.Background()))
}
