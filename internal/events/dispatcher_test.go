package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var received []Event
	d.Subscribe(EventIncidentCreated, func(_ context.Context, e Event) error {
		received = append(received, e)
		return nil
	})
	d.Subscribe(EventIncidentCreated, func(_ context.Context, e Event) error {
		received = append(received, e)
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventIncidentCreated, IncidentID: 7})
	require.NoError(t, err)
	require.Len(t, received, 2)
	assert.Equal(t, int64(7), received[0].IncidentID)
}

func TestDispatcherIgnoresUnsubscribedTypes(t *testing.T) {
	d := NewInMemoryDispatcher()

	called := false
	d.Subscribe(EventIncidentDeleted, func(context.Context, Event) error {
		called = true
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventCommentAdded}))
	assert.False(t, called)
}

func TestDispatcherHandlerErrorDoesNotStopDelivery(t *testing.T) {
	d := NewInMemoryDispatcher()

	var order []string
	d.Subscribe(EventIncidentAssigned, func(context.Context, Event) error {
		order = append(order, "first")
		return errors.New("handler failure")
	})
	d.Subscribe(EventIncidentAssigned, func(context.Context, Event) error {
		order = append(order, "second")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventIncidentAssigned}))
	assert.Equal(t, []string{"first", "second"}, order)
}
