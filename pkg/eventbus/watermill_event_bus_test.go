package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowengine/pkg/channels/gochannel"
	"github.com/dukex/flowengine/pkg/eventbus"
	"github.com/dukex/flowengine/pkg/events"
	"github.com/dukex/flowengine/pkg/mocks"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	logger := slog.Default()

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_DeliversTypedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)

	received := make(chan *events.GraphStatusChanged, 1)

	require.NoError(t, bus.Handle(events.GraphStatusChangedEvent, func(_ context.Context, event any) error {
		changed, ok := event.(*events.GraphStatusChanged)
		if !ok {
			return errors.New("unexpected event")
		}

		received <- changed

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	event := events.GraphStatusChanged{
		BaseEvent: events.NewBaseEvent(events.GraphStatusChangedEvent, "exec-1"),
		From:      models.StatusRunning,
		To:        models.StatusSucceeded,
	}
	require.NoError(t, bus.Publish(ctx, "exec-1", event))

	select {
	case got := <-received:
		assert.Equal(t, "exec-1", got.ExecutionID)
		assert.Equal(t, models.StatusSucceeded, got.To)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)

	var calls atomic.Int32

	require.NoError(t, bus.Handle(events.TaskFinishedEvent, func(context.Context, any) error {
		calls.Add(1)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "exec-1", events.TaskSuspended{
		BaseEvent: events.NewBaseEvent(events.TaskSuspendedEvent, "exec-1"),
		TaskName:  "wait",
	}))
	require.NoError(t, bus.Publish(ctx, "exec-1", events.TaskFinished{
		BaseEvent: events.NewBaseEvent(events.TaskFinishedEvent, "exec-1"),
		TaskName:  "wait",
		Status:    models.StatusSucceeded,
	}))

	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := eventbus.Decode("nope", []byte(`{}`))
	assert.Error(t, err)
}

func TestBusNotifier_SwallowsErrors(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "exec-1", mock.Anything).Return(errors.New("broker down"))

	notifier := eventbus.NewBusNotifier(bus, slog.Default())

	assert.NotPanics(t, func() {
		notifier.Notify(context.Background(), "exec-1", events.TaskSuspended{TaskName: "wait"})
	})
	bus.AssertExpectations(t)

	eventbus.NopNotifier{}.Notify(context.Background(), "exec-1", events.TaskSuspended{})
}
