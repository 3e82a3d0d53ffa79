package scheduler

import "github.com/dukex/flowengine/pkg/dispatch"

// Completion and tick rejections. They live in dispatch so the completion listener can tell
// them apart from transient failures.
var (
	ErrExecutionFinished    = dispatch.ErrExecutionFinished
	ErrUnexpectedCompletion = dispatch.ErrUnexpectedCompletion
	ErrInvalidCompletion    = dispatch.ErrInvalidCompletion
	ErrNoProgress           = dispatch.ErrNoProgress
)

// Failure codes recorded on tasks the scheduler fails itself.
const (
	CodeDispatchError  = "DISPATCH_ERROR"
	CodeConditionError = "CONDITION_ERROR"
	CodeInvalidSource  = "INVALID_SOURCE"
	CodeExpansionError = "EXPANSION_ERROR"
	CodePartitionError = "PARTITION_ERROR"
)
