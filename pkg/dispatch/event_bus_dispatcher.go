package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowengine/pkg/eventbus"
	"github.com/dukex/flowengine/pkg/events"
)

// EventBusDispatcher publishes task.dispatched events for remote executors.
type EventBusDispatcher struct {
	bus      eventbus.EventPublisher
	workerID string
	logger   *slog.Logger
}

// NewEventBusDispatcher creates a dispatcher publishing on bus.
func NewEventBusDispatcher(bus eventbus.EventPublisher, workerID string, logger *slog.Logger) *EventBusDispatcher {
	return &EventBusDispatcher{
		bus:      bus,
		workerID: workerID,
		logger:   logger.With("module", "event_bus_dispatcher"),
	}
}

func (d *EventBusDispatcher) Dispatch(ctx context.Context, req Request) error {
	event := events.TaskDispatched{
		BaseEvent: events.NewBaseEvent(events.TaskDispatchedEvent, req.ExecutionID),
		TaskName:  req.TaskName,
		Category:  req.Category,
		Resource:  req.Resource,
		Input:     req.Input,
	}
	event.WorkerID = d.workerID

	if req.View != nil {
		event.Context = req.View.Snapshot()
	}

	err := d.bus.Publish(ctx, req.ExecutionID, event)
	if err != nil {
		return fmt.Errorf("failed to publish dispatch of %s: %w", req.TaskName, err)
	}

	d.logger.DebugContext(ctx, "Dispatched task", "execution_id", req.ExecutionID, "task", req.TaskName, "resource", req.Resource)

	return nil
}
