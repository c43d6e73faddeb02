package eventbus_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfield-crm/outfield/pkg/channels/gochannel"
	"github.com/outfield-crm/outfield/pkg/eventbus"
	"github.com/outfield-crm/outfield/pkg/events"
	"github.com/outfield-crm/outfield/pkg/models"
)

func newBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		err := bus.Close()
		assert.NoError(t, err)
	})

	return bus
}

func TestPublishAndHandleTypedEvent(t *testing.T) {
	bus := newBus(t)

	received := make(chan *events.WorkflowStartRequested, 1)

	err := bus.Handle(events.WorkflowStartRequestedEvent, func(_ context.Context, event any) error {
		request, ok := event.(*events.WorkflowStartRequested)
		require.True(t, ok)
		received <- request

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	event := events.WorkflowStartRequested{
		BaseEvent:      events.NewBaseEvent(events.WorkflowStartRequestedEvent, "meeting-bot-m-1"),
		DefinitionType: models.DefinitionMeetingBot,
		Input:          json.RawMessage(`{"meeting_id":"m-1"}`),
	}
	require.NoError(t, bus.Publish(t.Context(), "meeting-bot-m-1", event))

	select {
	case got := <-received:
		assert.Equal(t, "meeting-bot-m-1", got.WorkflowID)
		assert.Equal(t, models.DefinitionMeetingBot, got.DefinitionType)
		assert.JSONEq(t, `{"meeting_id":"m-1"}`, string(got.Input))
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestUnhandledEventTypesAreAcked(t *testing.T) {
	bus := newBus(t)

	received := make(chan *events.SignalReceived, 1)

	err := bus.Handle(events.SignalReceivedEvent, func(_ context.Context, event any) error {
		signal, ok := event.(*events.SignalReceived)
		require.True(t, ok)
		received <- signal

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(t.Context()))

	// No handler registered for lifecycle notifications; they must not
	// block the subscription.
	started := events.WorkflowStarted{
		BaseEvent:      events.NewBaseEvent(events.WorkflowStartedEvent, "wf-1"),
		DefinitionType: models.DefinitionSequenceEnrollment,
	}
	require.NoError(t, bus.Publish(t.Context(), "wf-1", started))

	signal := events.SignalReceived{
		BaseEvent:  events.NewBaseEvent(events.SignalReceivedEvent, "wf-1"),
		SignalName: "email.replied",
		Payload:    json.RawMessage(`{"from":"lead@example.com"}`),
	}
	require.NoError(t, bus.Publish(t.Context(), "wf-1", signal))

	select {
	case got := <-received:
		assert.Equal(t, "email.replied", got.SignalName)
	case <-time.After(2 * time.Second):
		t.Fatal("signal was not delivered")
	}
}

func TestGenerateIDIsUnique(t *testing.T) {
	bus := newBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
