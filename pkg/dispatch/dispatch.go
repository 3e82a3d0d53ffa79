// Package dispatch hands ready tasks to executors and carries their completions back to
// the scheduler.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/partition"
)

// ErrNoDispatcher is returned when a task needs dispatching and none is configured.
var ErrNoDispatcher = errors.New("no dispatcher configured")

// Request is one task handed to an executor.
type Request struct {
	ExecutionID string
	TaskName    string
	Category    models.Category
	Resource    string
	Input       map[string]any

	// View is the task's live context partition. Remote executors receive its snapshot.
	View partition.View
}

// Dispatcher hands a task to its executor. Dispatch must not wait for the task to finish.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}

// FuncDispatcher adapts a function to Dispatcher.
type FuncDispatcher func(ctx context.Context, req Request) error

func (f FuncDispatcher) Dispatch(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Completion is an executor's report for a dispatched or suspended task.
type Completion struct {
	ExecutionID string
	TaskName    string
	Status      models.Status
	Output      map[string]any
	Code        string
	Message     string
	FinishedAt  time.Time
	Extension   map[string]any
}

// Submission asks for a new execution. ExecutionID is generated when empty.
type Submission struct {
	ExecutionID string
	Definition  *models.GraphDefinition
	Input       map[string]any
}

// Completer applies completions.
type Completer interface {
	Complete(ctx context.Context, completion Completion) error
}

// Submitter starts executions.
type Submitter interface {
	Submit(ctx context.Context, submission Submission) (*models.ExecutionGraph, error)
}
