package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to every subscriber on the channel", func(t *testing.T) {
		broker := NewMemoryBroker()

		var first, second []Event
		require.NoError(t, broker.Subscribe(ctx, ChatChannel, func(ctx context.Context, e Event) error {
			first = append(first, e)
			return nil
		}))
		require.NoError(t, broker.Subscribe(ctx, ChatChannel, func(ctx context.Context, e Event) error {
			second = append(second, e)
			return nil
		}))

		event := Event{Type: EventMessageNew, ConversationID: uuid.New()}
		require.NoError(t, broker.Publish(ctx, ChatChannel, event))

		require.Len(t, first, 1)
		require.Len(t, second, 1)
		assert.Equal(t, event.ConversationID, first[0].ConversationID)
	})

	t.Run("channels are isolated", func(t *testing.T) {
		broker := NewMemoryBroker()

		var got []Event
		require.NoError(t, broker.Subscribe(ctx, "other.channel", func(ctx context.Context, e Event) error {
			got = append(got, e)
			return nil
		}))

		require.NoError(t, broker.Publish(ctx, ChatChannel, Event{Type: EventMessageNew}))
		assert.Empty(t, got)
	})

	t.Run("handler error surfaces to the publisher", func(t *testing.T) {
		broker := NewMemoryBroker()
		boom := errors.New("boom")

		require.NoError(t, broker.Subscribe(ctx, ChatChannel, func(ctx context.Context, e Event) error {
			return boom
		}))

		err := broker.Publish(ctx, ChatChannel, Event{Type: EventMessageNew})
		assert.ErrorIs(t, err, boom)
	})
}
