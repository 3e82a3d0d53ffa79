package tiered_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/flowengine/pkg/mocks"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/dukex/flowengine/pkg/persistence/file"
	"github.com/dukex/flowengine/pkg/persistence/tiered"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func graphWithStatus(id string, status models.Status) *models.ExecutionGraph {
	return &models.ExecutionGraph{
		ExecutionID: id,
		Status:      status,
		Tasks: map[string]*models.TaskNode{
			"a": {Name: "a", Definition: &models.TaskDefinition{Name: "a", Category: models.CategoryCompute}},
		},
		UpdatedAt: time.Now(),
	}
}

func notFound(id string) error {
	return persistence.NewGraphError("Load", id, persistence.ErrGraphNotFound)
}

type fixture struct {
	hot      *mocks.MockGraphStore
	overflow *file.Store
	archive  *file.Store
	store    *tiered.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	hot := &mocks.MockGraphStore{}
	overflow := file.NewStore(t.TempDir(), slog.Default())
	archive := file.NewStore(t.TempDir(), slog.Default())

	return fixture{
		hot:      hot,
		overflow: overflow,
		archive:  archive,
		store:    tiered.NewStore(slog.Default(), hot, overflow, archive),
	}
}

func TestStore_SaveHot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	graph := graphWithStatus("exec-1", models.StatusRunning)
	f.hot.On("Save", ctx, graph).Return(nil)

	require.NoError(t, f.store.Save(ctx, graph))

	_, err := f.overflow.Load(ctx, "exec-1")
	assert.True(t, persistence.IsGraphNotFound(err))

	_, err = f.archive.Load(ctx, "exec-1")
	assert.True(t, persistence.IsGraphNotFound(err), "running graphs are not archived")

	f.hot.AssertExpectations(t)
}

func TestStore_OverflowOnTooLarge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	graph := graphWithStatus("exec-2", models.StatusRunning)
	f.hot.On("Save", ctx, graph).Return(persistence.NewGraphError("Save", "exec-2", persistence.ErrGraphTooLarge))
	f.hot.On("Delete", ctx, "exec-2").Return(nil)
	f.hot.On("Load", ctx, "exec-2").Return(nil, notFound("exec-2"))

	require.NoError(t, f.store.Save(ctx, graph))

	loaded, err := f.store.Load(ctx, "exec-2")
	require.NoError(t, err)
	assert.Equal(t, "exec-2", loaded.ExecutionID)

	f.hot.AssertExpectations(t)
}

func TestStore_ArchivesTerminalGraphs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	graph := graphWithStatus("exec-3", models.StatusSucceeded)
	f.hot.On("Save", ctx, graph).Return(nil)

	require.NoError(t, f.store.Save(ctx, graph))

	archived, err := f.archive.Load(ctx, "exec-3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, archived.Status)
}

func TestStore_LoadFallsThroughTiers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.archive.Save(ctx, graphWithStatus("exec-4", models.StatusFailed)))
	f.hot.On("Load", ctx, "exec-4").Return(nil, notFound("exec-4"))
	f.hot.On("Load", ctx, "missing").Return(nil, notFound("missing"))

	loaded, err := f.store.Load(ctx, "exec-4")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, loaded.Status)

	_, err = f.store.Load(ctx, "missing")
	assert.True(t, persistence.IsGraphNotFound(err))
}

func TestStore_LoadSurfacesTierFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	boom := errors.New("connection reset")
	f.hot.On("Load", ctx, "exec-5").Return(nil, boom)

	_, err := f.store.Load(ctx, "exec-5")
	assert.ErrorIs(t, err, boom)
}

func TestStore_SaveRejectsInvalidGraph(t *testing.T) {
	f := newFixture(t)

	err := f.store.Save(context.Background(), &models.ExecutionGraph{})
	assert.ErrorIs(t, err, persistence.ErrInvalidGraph)
	f.hot.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestStore_Close(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.hot.On("Close", ctx).Return(errors.New("already closed"))

	err := f.store.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already closed")
}
