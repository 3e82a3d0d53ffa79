// Package events defines the events exchanged between the scheduler, the dispatch layer and
// the notification consumers.
package events

import (
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topics.
const (
	Topic         = "flowengine.events"    // Notifications and submissions
	DispatchTopic = "flowengine.dispatch"  // Task dispatch requests for executors
	CompleteTopic = "flowengine.completed" // Completion callbacks from executors
)

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionSubmittedEvent EventType = "execution.submitted"
	GraphStatusChangedEvent EventType = "graph.status.changed"

	// Task events.
	TaskDispatchedEvent EventType = "task.dispatched"
	TaskSuspendedEvent  EventType = "task.suspended"
	TaskCompletedEvent  EventType = "task.completed"
	TaskFinishedEvent   EventType = "task.finished"
)

// TopicFor returns the topic events of type eventType travel on.
func TopicFor(eventType EventType) string {
	switch eventType {
	case TaskDispatchedEvent:
		return DispatchTopic
	case TaskCompletedEvent:
		return CompleteTopic
	case ExecutionSubmittedEvent, GraphStatusChangedEvent, TaskSuspendedEvent, TaskFinishedEvent:
		return Topic
	default:
		return Topic
	}
}

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	WorkerID    string         `json:"worker_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ExecutionSubmitted asks a scheduler to start a new execution.
type ExecutionSubmitted struct {
	BaseEvent

	Definition *models.GraphDefinition `json:"definition"`
	Input      map[string]any          `json:"input,omitempty"`
}

func (e ExecutionSubmitted) GetType() EventType {
	return ExecutionSubmittedEvent
}

// GraphStatusChanged is emitted on every graph-level status transition.
type GraphStatusChanged struct {
	BaseEvent

	From           models.Status `json:"from"`
	To             models.Status `json:"to"`
	FailureCode    string        `json:"failure_code,omitempty"`
	FailureMessage string        `json:"failure_message,omitempty"`
	FailedTasks    []string      `json:"failed_tasks,omitempty"`
}

func (e GraphStatusChanged) GetType() EventType {
	return GraphStatusChangedEvent
}

// TaskDispatched carries one ready task and its partitioned context to an executor.
type TaskDispatched struct {
	BaseEvent

	TaskName string          `json:"task_name"`
	Category models.Category `json:"category"`
	Resource string          `json:"resource,omitempty"`
	Input    map[string]any  `json:"input,omitempty"`
	Context  map[string]any  `json:"context,omitempty"`
}

func (e TaskDispatched) GetType() EventType {
	return TaskDispatchedEvent
}

// TaskSuspended announces a task that waits for an external wake-up.
type TaskSuspended struct {
	BaseEvent

	TaskName string `json:"task_name"`
}

func (e TaskSuspended) GetType() EventType {
	return TaskSuspendedEvent
}

// TaskCompleted is the completion callback an executor sends back.
type TaskCompleted struct {
	BaseEvent

	TaskName   string                 `json:"task_name"`
	Status     models.Status          `json:"status"`
	Output     map[string]any         `json:"output,omitempty"`
	Invocation *models.InvocationInfo `json:"invocation,omitempty"`
}

func (e TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

// TaskFinished is emitted when a task reaches a final or key-path status.
type TaskFinished struct {
	BaseEvent

	TaskName string        `json:"task_name"`
	Status   models.Status `json:"status"`
	Code     string        `json:"code,omitempty"`
	Message  string        `json:"message,omitempty"`
}

func (e TaskFinished) GetType() EventType {
	return TaskFinishedEvent
}

func NewBaseEvent(eventType EventType, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}
