package cmd

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/flowengine/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"file://./data":                    "file",
		"./data":                           "file",
		"redis://localhost:6379/0":         "redis",
		"rediss://cache:6380":              "rediss",
		"postgres://u:p@localhost/db":      "postgres",
		"postgresql://u:p@localhost/db":    "postgresql",
		"mongodb://localhost:27017/graphs": "file",
	}

	for url, expected := range tests {
		assert.Equal(t, expected, parsePersistenceProvider(url), url)
	}
}

func TestNewStores_File(t *testing.T) {
	root := t.TempDir()

	stores, err := NewStores(context.Background(), slog.Default(), StoreConfig{URL: "file://" + root})
	require.NoError(t, err)

	assert.IsType(t, &file.Store{}, stores.Graphs)
	assert.Same(t, stores.Graphs, stores.Expirable)
	assert.NoError(t, stores.Graphs.HealthCheck(context.Background()))
}

func TestNewEventBus(t *testing.T) {
	bus := NewEventBus("gochannel", nil, slog.Default())
	require.NotNil(t, bus)
	assert.NoError(t, bus.Close())

	assert.Panics(t, func() {
		NewEventBus("carrier-pigeon", nil, slog.Default())
	})
}
