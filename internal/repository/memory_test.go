package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two senders racing the first-ever message in a conversation must both get
// a sequence number; the allocator absorbs the insert race instead of
// surfacing it.
func TestNextSequenceFirstMessageRace(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Conversations()
	convID := uuid.New()

	const senders = 16
	seqs := make(chan int64, senders)

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := repo.NextSequence(context.Background(), convID)
			if assert.NoError(t, err) {
				seqs <- seq
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "sequence %d allocated twice", seq)
		seen[seq] = true
	}
	require.Len(t, seen, senders)
	for i := int64(1); i <= senders; i++ {
		assert.True(t, seen[i], "sequence %d never allocated", i)
	}
}
