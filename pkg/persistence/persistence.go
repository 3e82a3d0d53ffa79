// Package persistence provides the storage abstraction for execution graphs.
package persistence

import (
	"context"
	"fmt"

	"github.com/dukex/flowengine/pkg/models"
)

// GraphStore loads and saves execution graphs. The scheduler treats it as one
// read/modify/write cycle per tick.
type GraphStore interface {
	Load(ctx context.Context, executionID string) (*models.ExecutionGraph, error)
	Save(ctx context.Context, graph *models.ExecutionGraph) error
	SaveTasks(ctx context.Context, executionID string, tasks []*models.TaskNode) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// CheckGraph enforces the invariants every store checks before writing a graph.
func CheckGraph(op string, graph *models.ExecutionGraph) error {
	if graph == nil {
		return NewGraphError(op, "", ErrInvalidGraph)
	}

	if graph.ExecutionID == "" {
		return NewGraphError(op, "", fmt.Errorf("%w: empty execution id", ErrInvalidGraph))
	}

	err := models.ValidateUniqueNames(graph)
	if err != nil {
		return NewGraphError(op, graph.ExecutionID, err)
	}

	return nil
}

// SaveTasksWith implements SaveTasks for stores that persist whole graphs: it loads the
// graph, replaces the given nodes and saves it back.
func SaveTasksWith(ctx context.Context, store GraphStore, executionID string, tasks []*models.TaskNode) error {
	graph, err := store.Load(ctx, executionID)
	if err != nil {
		return err
	}

	err = graph.ReplaceTasks(tasks)
	if err != nil {
		return NewGraphError("SaveTasks", executionID, err)
	}

	return store.Save(ctx, graph)
}
