package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"
	"github.com/samujjwal/rental-sub011/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrGetConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("inquirer starts a conversation", func(t *testing.T) {
		env := newTestEnv()
		owner := uuid.New()
		inquirer := uuid.New()
		listingID := env.store.AddListing(owner)

		conv, err := env.chat.CreateOrGetConversation(ctx, listingID, inquirer, owner)
		require.NoError(t, err)
		assert.Equal(t, owner, conv.OwnerID)
		assert.Equal(t, inquirer, conv.InquirerID)
		assert.Equal(t, listingID, conv.ListingID)

		created := env.eventsOfType(events.EventConversationNew)
		require.Len(t, created, 1)
		assert.Equal(t, conv.ID, created[0].ConversationID)
		assert.Equal(t, []uuid.UUID{owner, inquirer}, created[0].UserIDs)
	})

	t.Run("repeat request returns the same conversation", func(t *testing.T) {
		env := newTestEnv()
		owner := uuid.New()
		inquirer := uuid.New()
		listingID := env.store.AddListing(owner)

		first, err := env.chat.CreateOrGetConversation(ctx, listingID, inquirer, owner)
		require.NoError(t, err)

		second, err := env.chat.CreateOrGetConversation(ctx, listingID, inquirer, owner)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		// Only the actual creation is announced.
		assert.Len(t, env.eventsOfType(events.EventConversationNew), 1)
	})

	t.Run("same conversation regardless of which party asks", func(t *testing.T) {
		env := newTestEnv()
		owner := uuid.New()
		inquirer := uuid.New()
		listingID := env.store.AddListing(owner)

		fromInquirer, err := env.chat.CreateOrGetConversation(ctx, listingID, inquirer, owner)
		require.NoError(t, err)

		fromOwner, err := env.chat.CreateOrGetConversation(ctx, listingID, owner, inquirer)
		require.NoError(t, err)
		assert.Equal(t, fromInquirer.ID, fromOwner.ID)
	})

	t.Run("concurrent requests converge on one conversation", func(t *testing.T) {
		env := newTestEnv()
		owner := uuid.New()
		inquirer := uuid.New()
		listingID := env.store.AddListing(owner)

		const attempts = 16
		results := make([]uuid.UUID, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				conv, err := env.chat.CreateOrGetConversation(ctx, listingID, inquirer, owner)
				if assert.NoError(t, err) {
					results[i] = conv.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range results[1:] {
			assert.Equal(t, results[0], id)
		}
		assert.Equal(t, 1, env.store.ConversationCount())
	})

	t.Run("self conversation rejected", func(t *testing.T) {
		env := newTestEnv()
		owner := uuid.New()
		listingID := env.store.AddListing(owner)

		_, err := env.chat.CreateOrGetConversation(ctx, listingID, owner, owner)
		assert.ErrorIs(t, err, rental_errors.ErrInvalidInput)
	})

	t.Run("neither party owns the listing", func(t *testing.T) {
		env := newTestEnv()
		listingID := env.store.AddListing(uuid.New())

		_, err := env.chat.CreateOrGetConversation(ctx, listingID, uuid.New(), uuid.New())
		assert.ErrorIs(t, err, rental_errors.ErrInvalidInput)
	})

	t.Run("unknown listing", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.chat.CreateOrGetConversation(ctx, uuid.New(), uuid.New(), uuid.New())
		assert.ErrorIs(t, err, rental_errors.ErrNotFound)
	})
}

func seedConversation(t *testing.T, env *testEnv) (convID, owner, inquirer uuid.UUID) {
	t.Helper()
	owner = uuid.New()
	inquirer = uuid.New()
	listingID := env.store.AddListing(owner)

	conv, err := env.chat.CreateOrGetConversation(context.Background(), listingID, inquirer, owner)
	require.NoError(t, err)
	return conv.ID, owner, inquirer
}

func TestAppendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("sequence increases by one per message", func(t *testing.T) {
		env := newTestEnv()
		convID, owner, inquirer := seedConversation(t, env)

		first, err := env.chat.AppendMessage(ctx, convID, inquirer, "hi, still available?")
		require.NoError(t, err)
		second, err := env.chat.AppendMessage(ctx, convID, owner, "it is")
		require.NoError(t, err)
		third, err := env.chat.AppendMessage(ctx, convID, inquirer, "great, when can I view it?")
		require.NoError(t, err)

		assert.Equal(t, int64(1), first.SeqID)
		assert.Equal(t, int64(2), second.SeqID)
		assert.Equal(t, int64(3), third.SeqID)
	})

	t.Run("concurrent senders get distinct sequences", func(t *testing.T) {
		env := newTestEnv()
		convID, owner, inquirer := seedConversation(t, env)

		const n = 20
		seqs := make([]int64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sender := owner
				if i%2 == 0 {
					sender = inquirer
				}
				msg, err := env.chat.AppendMessage(ctx, convID, sender, "msg")
				if assert.NoError(t, err) {
					seqs[i] = msg.SeqID
				}
			}(i)
		}
		wg.Wait()

		seen := make(map[int64]bool, n)
		for _, seq := range seqs {
			assert.False(t, seen[seq], "duplicate sequence %d", seq)
			seen[seq] = true
			assert.GreaterOrEqual(t, seq, int64(1))
			assert.LessOrEqual(t, seq, int64(n))
		}
	})

	t.Run("broadcast carries the persisted message", func(t *testing.T) {
		env := newTestEnv()
		convID, _, inquirer := seedConversation(t, env)

		msg, err := env.chat.AppendMessage(ctx, convID, inquirer, "hello")
		require.NoError(t, err)

		published := env.eventsOfType(events.EventMessageNew)
		require.Len(t, published, 1)

		var payload MessageEventPayload
		require.NoError(t, json.Unmarshal(published[0].Payload, &payload))
		assert.Equal(t, msg.ID, payload.ID)
		assert.Equal(t, convID, payload.ConversationID)
		assert.Equal(t, inquirer, payload.SenderID)
		assert.Equal(t, "hello", payload.Content)
		assert.Equal(t, int64(1), payload.SeqID)
	})

	t.Run("non participant is rejected without side effects", func(t *testing.T) {
		env := newTestEnv()
		convID, _, _ := seedConversation(t, env)

		_, err := env.chat.AppendMessage(ctx, convID, uuid.New(), "let me in")
		assert.ErrorIs(t, err, rental_errors.ErrNotParticipant)
		assert.Equal(t, 0, env.store.MessageCount())
		assert.Empty(t, env.eventsOfType(events.EventMessageNew))
	})

	t.Run("invalid content is rejected without side effects", func(t *testing.T) {
		env := newTestEnv()
		convID, _, inquirer := seedConversation(t, env)

		_, err := env.chat.AppendMessage(ctx, convID, inquirer, "  ")
		assert.ErrorIs(t, err, rental_errors.ErrInvalidContent)

		_, err = env.chat.AppendMessage(ctx, convID, inquirer, strings.Repeat("x", 4001))
		assert.ErrorIs(t, err, rental_errors.ErrInvalidContent)

		assert.Equal(t, 0, env.store.MessageCount())
		assert.Empty(t, env.eventsOfType(events.EventMessageNew))
	})

	t.Run("unknown conversation", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.chat.AppendMessage(ctx, uuid.New(), uuid.New(), "hello")
		assert.ErrorIs(t, err, rental_errors.ErrNotFound)
	})
}

func TestListMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("pages walk the history exactly once", func(t *testing.T) {
		env := newTestEnv()
		convID, _, inquirer := seedConversation(t, env)

		const total = 7
		for i := 0; i < total; i++ {
			_, err := env.chat.AppendMessage(ctx, convID, inquirer, "message")
			require.NoError(t, err)
		}

		var seqs []int64
		beforeSeq := int64(0)
		for {
			page, hasMore, err := env.chat.ListMessages(ctx, convID, inquirer, beforeSeq, 3)
			require.NoError(t, err)
			for _, m := range page {
				seqs = append(seqs, m.SeqID)
			}
			if !hasMore {
				break
			}
			beforeSeq = page[len(page)-1].SeqID
		}

		// Newest first, each sequence exactly once.
		require.Len(t, seqs, total)
		for i, seq := range seqs {
			assert.Equal(t, int64(total-i), seq)
		}
	})

	t.Run("hasMore is false on the last page", func(t *testing.T) {
		env := newTestEnv()
		convID, _, inquirer := seedConversation(t, env)

		for i := 0; i < 3; i++ {
			_, err := env.chat.AppendMessage(ctx, convID, inquirer, "message")
			require.NoError(t, err)
		}

		page, hasMore, err := env.chat.ListMessages(ctx, convID, inquirer, 0, 3)
		require.NoError(t, err)
		assert.Len(t, page, 3)
		assert.False(t, hasMore)
	})

	t.Run("deleted messages stay in the page, redacted", func(t *testing.T) {
		env := newTestEnv()
		convID, _, inquirer := seedConversation(t, env)

		msg, err := env.chat.AppendMessage(ctx, convID, inquirer, "regrettable")
		require.NoError(t, err)
		_, err = env.chat.AppendMessage(ctx, convID, inquirer, "follow-up")
		require.NoError(t, err)

		require.NoError(t, env.chat.DeleteMessage(ctx, msg.ID, inquirer))

		page, _, err := env.chat.ListMessages(ctx, convID, inquirer, 0, 10)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.True(t, page[1].Deleted())
		assert.Empty(t, page[1].Content)
	})

	t.Run("non participant cannot read", func(t *testing.T) {
		env := newTestEnv()
		convID, _, _ := seedConversation(t, env)

		_, _, err := env.chat.ListMessages(ctx, convID, uuid.New(), 0, 10)
		assert.ErrorIs(t, err, rental_errors.ErrNotParticipant)
	})
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()

	t.Run("advances and is monotonic", func(t *testing.T) {
		env := newTestEnv()
		convID, owner, inquirer := seedConversation(t, env)

		first, err := env.chat.AppendMessage(ctx, convID, inquirer, "one")
		require.NoError(t, err)
		second, err := env.chat.AppendMessage(ctx, convID, inquirer, "two")
		require.NoError(t, err)

		seq, err := env.chat.MarkRead(ctx, convID, owner, second.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), seq)

		// Acking an older message never moves the watermark back.
		seq, err = env.chat.MarkRead(ctx, convID, owner, first.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), seq)

		read := env.eventsOfType(events.EventConversationRead)
		require.Len(t, read, 2)
		var payload ReadEventPayload
		require.NoError(t, json.Unmarshal(read[1].Payload, &payload))
		assert.Equal(t, owner, payload.UserID)
		assert.Equal(t, int64(2), payload.LastReadSeq)
	})

	t.Run("is idempotent", func(t *testing.T) {
		env := newTestEnv()
		convID, owner, inquirer := seedConversation(t, env)

		msg, err := env.chat.AppendMessage(ctx, convID, inquirer, "one")
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			seq, err := env.chat.MarkRead(ctx, convID, owner, msg.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), seq)
		}
	})

	t.Run("message from another conversation is rejected", func(t *testing.T) {
		env := newTestEnv()
		convID, owner, inquirer := seedConversation(t, env)
		otherConvID, _, otherInquirer := seedConversation(t, env)

		_, err := env.chat.AppendMessage(ctx, convID, inquirer, "here")
		require.NoError(t, err)
		foreign, err := env.chat.AppendMessage(ctx, otherConvID, otherInquirer, "there")
		require.NoError(t, err)

		_, err = env.chat.MarkRead(ctx, convID, owner, foreign.ID)
		assert.ErrorIs(t, err, rental_errors.ErrNotFound)
	})

	t.Run("non participant cannot ack", func(t *testing.T) {
		env := newTestEnv()
		convID, _, inquirer := seedConversation(t, env)

		msg, err := env.chat.AppendMessage(ctx, convID, inquirer, "one")
		require.NoError(t, err)

		_, err = env.chat.MarkRead(ctx, convID, uuid.New(), msg.ID)
		assert.ErrorIs(t, err, rental_errors.ErrNotParticipant)
	})
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("sender soft-deletes own message", func(t *testing.T) {
		env := newTestEnv()
		convID, _, inquirer := seedConversation(t, env)

		msg, err := env.chat.AppendMessage(ctx, convID, inquirer, "oops")
		require.NoError(t, err)

		require.NoError(t, env.chat.DeleteMessage(ctx, msg.ID, inquirer))

		stored, ok := env.store.Message(msg.ID)
		require.True(t, ok)
		assert.True(t, stored.Deleted())
		assert.Empty(t, stored.Content)
		assert.Equal(t, msg.SeqID, stored.SeqID)
	})

	t.Run("only the sender may delete", func(t *testing.T) {
		env := newTestEnv()
		convID, owner, inquirer := seedConversation(t, env)

		msg, err := env.chat.AppendMessage(ctx, convID, inquirer, "mine")
		require.NoError(t, err)

		err = env.chat.DeleteMessage(ctx, msg.ID, owner)
		assert.ErrorIs(t, err, rental_errors.ErrNotParticipant)
		stored, ok := env.store.Message(msg.ID)
		require.True(t, ok)
		assert.False(t, stored.Deleted())
	})
}

func TestDeleteConversation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	convID, owner, inquirer := seedConversation(t, env)

	_, err := env.chat.AppendMessage(ctx, convID, inquirer, "hello")
	require.NoError(t, err)

	t.Run("non participant cannot delete", func(t *testing.T) {
		err := env.chat.DeleteConversation(ctx, convID, uuid.New())
		assert.ErrorIs(t, err, rental_errors.ErrNotParticipant)
	})

	t.Run("participant deletes with messages", func(t *testing.T) {
		require.NoError(t, env.chat.DeleteConversation(ctx, convID, owner))

		_, err := env.chat.GetConversation(ctx, convID, owner)
		assert.ErrorIs(t, err, rental_errors.ErrNotFound)
		assert.Equal(t, 0, env.store.MessageCount())
	})
}

func TestListConversations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	owner := uuid.New()
	inquirer := uuid.New()
	for i := 0; i < 3; i++ {
		listingID := env.store.AddListing(owner)
		_, err := env.chat.CreateOrGetConversation(ctx, listingID, inquirer, owner)
		require.NoError(t, err)
	}

	convs, total, err := env.chat.ListConversations(ctx, inquirer, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, convs, 2)

	convs, total, err = env.chat.ListConversations(ctx, inquirer, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, convs, 1)

	convs, _, err = env.chat.ListConversations(ctx, uuid.New(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, convs)
}
