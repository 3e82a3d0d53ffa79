// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrGraphNotFound indicates no stored graph exists for the execution id.
	ErrGraphNotFound = errors.New("execution graph not found")

	// ErrGraphTooLarge indicates a graph exceeds what a bounded store accepts.
	ErrGraphTooLarge = errors.New("execution graph too large")

	// ErrInvalidGraph indicates a graph that cannot be stored.
	ErrInvalidGraph = errors.New("invalid execution graph")
)

// GraphError wraps graph-related errors with additional context.
type GraphError struct {
	Op          string // Operation being performed (e.g., "Load", "Save")
	ExecutionID string // Execution ID if applicable
	Err         error  // Underlying error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for graph errors.
func (e *GraphError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewGraphError creates a new graph error with context.
func NewGraphError(op, executionID string, err error) *GraphError {
	return &GraphError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// IsGraphNotFound checks if an error indicates a graph was not found.
func IsGraphNotFound(err error) bool {
	return errors.Is(err, ErrGraphNotFound)
}

// IsGraphTooLarge checks if an error indicates a graph exceeded a store's size bound.
func IsGraphTooLarge(err error) bool {
	return errors.Is(err, ErrGraphTooLarge)
}
