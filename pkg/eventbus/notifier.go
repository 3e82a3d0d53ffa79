package eventbus

import (
	"context"
	"log/slog"
)

// Notifier is a fire-and-forget event sink: delivery failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, key string, event Event)
}

// BusNotifier publishes notifications on an event bus.
type BusNotifier struct {
	publisher EventPublisher
	logger    *slog.Logger
}

// NewBusNotifier creates a notifier publishing on publisher.
func NewBusNotifier(publisher EventPublisher, logger *slog.Logger) *BusNotifier {
	return &BusNotifier{
		publisher: publisher,
		logger:    logger.With("module", "notifier"),
	}
}

func (n *BusNotifier) Notify(ctx context.Context, key string, event Event) {
	err := n.publisher.Publish(ctx, key, event)
	if err != nil {
		n.logger.WarnContext(ctx, "Failed to publish notification", "key", key, "event_type", event.GetType(), "error", err)
	}
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, Event) {}
