package dispatch

import (
	"errors"

	"github.com/dukex/flowengine/pkg/graph"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
)

var (
	// ErrExecutionFinished rejects work on a graph that already succeeded or failed.
	ErrExecutionFinished = errors.New("execution already finished")
	// ErrUnexpectedCompletion rejects a completion for a task that is not waiting for one.
	ErrUnexpectedCompletion = errors.New("task is not awaiting completion")
	// ErrInvalidCompletion rejects a completion carrying a status executors cannot report.
	ErrInvalidCompletion = errors.New("invalid completion status")
	// ErrNoProgress is returned when a tick keeps producing transitions without settling.
	ErrNoProgress = errors.New("scheduling tick did not settle")
	// ErrInvalidEvent is returned for an event whose payload does not match its type.
	ErrInvalidEvent = errors.New("invalid event payload")
)

// Permanent reports whether redelivering the message that caused err would fail the same
// way. Store and bus outages are not permanent.
func Permanent(err error) bool {
	for _, target := range []error{
		ErrExecutionFinished,
		ErrUnexpectedCompletion,
		ErrInvalidCompletion,
		ErrNoProgress,
		ErrInvalidEvent,
		persistence.ErrGraphNotFound,
		persistence.ErrGraphTooLarge,
		models.ErrTaskNotFound,
		models.ErrDuplicateTaskName,
		graph.ErrMalformedGraph,
		graph.ErrIllegalGraphState,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
