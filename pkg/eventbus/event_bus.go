// Package eventbus provides event-driven communication between the scheduler, executors and
// notification consumers.
package eventbus

import (
	"context"

	"github.com/dukex/flowengine/pkg/events"
)

// Event is anything published on the bus; its type selects the topic.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes events. key orders events: events sharing a key are delivered
// in publish order.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber routes consumed events to handlers. Every Handle call must precede
// Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives the decoded event. A returned error nacks the message.
type EventHandler func(ctx context.Context, event any) error

// EventBus carries dispatch, completion and status events between the scheduler and the
// executors.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
