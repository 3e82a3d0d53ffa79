package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowengine/pkg/eventbus"
	"github.com/dukex/flowengine/pkg/events"
)

// CompletionListener feeds task.completed events, and optionally execution.submitted events,
// from the event bus into the scheduler.
type CompletionListener struct {
	bus       eventbus.EventSubscriber
	completer Completer
	submitter Submitter
	logger    *slog.Logger
}

// NewCompletionListener creates a listener. submitter may be nil.
func NewCompletionListener(bus eventbus.EventSubscriber, completer Completer, submitter Submitter, logger *slog.Logger) *CompletionListener {
	return &CompletionListener{
		bus:       bus,
		completer: completer,
		submitter: submitter,
		logger:    logger.With("module", "completion_listener"),
	}
}

// Start registers the handlers and subscribes.
func (l *CompletionListener) Start(ctx context.Context) error {
	err := l.bus.Handle(events.TaskCompletedEvent, l.handleTaskCompleted)
	if err != nil {
		return fmt.Errorf("failed to register task completed handler: %w", err)
	}

	if l.submitter != nil {
		err = l.bus.Handle(events.ExecutionSubmittedEvent, l.handleExecutionSubmitted)
		if err != nil {
			return fmt.Errorf("failed to register execution submitted handler: %w", err)
		}
	}

	err = l.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	l.logger.InfoContext(ctx, "Completion listener started")

	return nil
}

func (l *CompletionListener) handleTaskCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.TaskCompleted)
	if !ok {
		return l.settle(ctx, l.logger, "Dropping task completed event", fmt.Errorf("%w: %T", ErrInvalidEvent, event))
	}

	completion := Completion{
		ExecutionID: completed.ExecutionID,
		TaskName:    completed.TaskName,
		Status:      completed.Status,
		Output:      completed.Output,
		FinishedAt:  completed.Timestamp,
	}

	if completed.Invocation != nil {
		completion.Code = completed.Invocation.Code
		completion.Message = completed.Invocation.Message
		completion.Extension = completed.Invocation.Extension

		if completed.Invocation.FinishedAt != nil {
			completion.FinishedAt = *completed.Invocation.FinishedAt
		}
	}

	if completion.FinishedAt.IsZero() {
		completion.FinishedAt = time.Now().UTC()
	}

	logger := l.logger.With("execution_id", completion.ExecutionID, "task", completion.TaskName)
	logger.DebugContext(ctx, "Received task completion", "status", completion.Status)

	err := l.completer.Complete(ctx, completion)
	if err != nil {
		return l.settle(ctx, logger, "Failed to apply task completion", err)
	}

	return nil
}

func (l *CompletionListener) handleExecutionSubmitted(ctx context.Context, event any) error {
	submitted, ok := event.(*events.ExecutionSubmitted)
	if !ok {
		return l.settle(ctx, l.logger, "Dropping execution submitted event", fmt.Errorf("%w: %T", ErrInvalidEvent, event))
	}

	graph, err := l.submitter.Submit(ctx, Submission{
		ExecutionID: submitted.ExecutionID,
		Definition:  submitted.Definition,
		Input:       submitted.Input,
	})
	if err != nil {
		return l.settle(ctx, l.logger.With("execution_id", submitted.ExecutionID), "Failed to start submitted execution", err)
	}

	l.logger.InfoContext(ctx, "Started submitted execution", "execution_id", graph.ExecutionID)

	return nil
}

// settle decides the fate of a failed message. Permanent rejections are logged and
// acknowledged so the broker does not redeliver them; anything else is returned and the
// message is nacked for a retry.
func (l *CompletionListener) settle(ctx context.Context, logger *slog.Logger, msg string, err error) error {
	if Permanent(err) {
		logger.WarnContext(ctx, msg, "error", err, "redeliver", false)

		return nil
	}

	logger.ErrorContext(ctx, msg, "error", err, "redeliver", true)

	return err
}
