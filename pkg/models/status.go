package models

// Status is the lifecycle state of a task node, a sub-group or a whole execution graph.
type Status string

const (
	StatusNotStarted   Status = "NOT_STARTED"
	StatusReady        Status = "READY"
	StatusRunning      Status = "RUNNING"
	StatusSucceeded    Status = "SUCCEEDED"
	StatusFailed       Status = "FAILED"
	StatusSkipped      Status = "SKIPPED"
	StatusKeySucceeded Status = "KEY_SUCCEEDED" // Key groups done, others may be pending
	StatusStashed      Status = "STASHED"       // Parked at a key checkpoint
)

// IsSuccessOrSkip reports whether s satisfies an ordinary dependency.
func (s Status) IsSuccessOrSkip() bool {
	return s == StatusSucceeded || s == StatusSkipped
}

// IsKeyPath reports whether s is one of the key-path statuses.
func (s Status) IsKeyPath() bool {
	return s == StatusKeySucceeded || s == StatusStashed
}

// IsRunningOrReady reports whether s is an in-flight status.
func (s Status) IsRunningOrReady() bool {
	return s == StatusRunning || s == StatusReady
}

// IsCompleted reports whether s is a final status for ordinary dependents.
func (s Status) IsCompleted() bool {
	return s == StatusSucceeded || s == StatusSkipped || s == StatusFailed
}

// IsKeyCompleted reports whether s satisfies a key-path dependent.
func (s Status) IsKeyCompleted() bool {
	return s == StatusSucceeded || s == StatusSkipped || s == StatusKeySucceeded
}
