package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalGraphState indicates a build request whose parent and group index disagree.
	ErrIllegalGraphState = errors.New("illegal graph state")
	// ErrMalformedGraph indicates a definition list that cannot form a graph.
	ErrMalformedGraph = errors.New("malformed graph")
)

// Error wraps a build failure with the operation and the task it concerns.
type Error struct {
	Op   string // Operation being performed (e.g., "Build", "ExpandGroup")
	Task string // Task or route the failure concerns
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Task, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsIllegalGraphState checks if an error indicates a parent/group index mismatch.
func IsIllegalGraphState(err error) bool {
	return errors.Is(err, ErrIllegalGraphState)
}

// IsMalformedGraph checks if an error indicates a malformed definition list.
func IsMalformedGraph(err error) bool {
	return errors.Is(err, ErrMalformedGraph)
}
