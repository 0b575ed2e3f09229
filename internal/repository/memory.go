package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/samujjwal/rental-sub011/internal/domain/chat"
	"github.com/samujjwal/rental-sub011/internal/domain/listing"
	"github.com/samujjwal/rental-sub011/internal/listings"
	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"

	"github.com/google/uuid"
)

// MemoryStore implements every repository plus the listing directory in
// process memory. It mirrors the postgres semantics, including the unique
// (listing, inquirer) constraint, the sequence allocator and the monotonic
// watermark upsert, and backs the test suites.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]chat.Conversation
	sequences     map[uuid.UUID]int64
	messages      map[uuid.UUID]chat.Message
	watermarks    map[watermarkKey]int64
	listings      map[uuid.UUID]listing.Listing
}

type watermarkKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[uuid.UUID]chat.Conversation),
		sequences:     make(map[uuid.UUID]int64),
		messages:      make(map[uuid.UUID]chat.Message),
		watermarks:    make(map[watermarkKey]int64),
		listings:      make(map[uuid.UUID]listing.Listing),
	}
}

func (s *MemoryStore) Conversations() ConversationRepository { return &memoryConversationRepo{s} }
func (s *MemoryStore) Messages() MessageRepository           { return &memoryMessageRepo{s} }
func (s *MemoryStore) Watermarks() WatermarkRepository       { return &memoryWatermarkRepo{s} }
func (s *MemoryStore) ListingDirectory() listings.Directory  { return &memoryDirectory{s} }

// AddListing seeds a listing and returns its id.
func (s *MemoryStore) AddListing(ownerID uuid.UUID) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := listing.Listing{ID: uuid.New(), OwnerID: ownerID, Title: "listing", CreatedAt: time.Now()}
	s.listings[l.ID] = l
	return l.ID
}

// SeedConversation seeds a listing owned by owner and its conversation with
// inquirer, bypassing the service layer.
func (s *MemoryStore) SeedConversation(owner, inquirer uuid.UUID) chat.Conversation {
	listingID := s.AddListing(owner)

	s.mu.Lock()
	defer s.mu.Unlock()
	conv := chat.Conversation{
		ID:         uuid.New(),
		ListingID:  listingID,
		OwnerID:    owner,
		InquirerID: inquirer,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.conversations[conv.ID] = conv
	return conv
}

// Message returns the stored message for assertions.
func (s *MemoryStore) Message(id uuid.UUID) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	return m, ok
}

func (s *MemoryStore) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *MemoryStore) ConversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

type memoryConversationRepo struct{ s *MemoryStore }

func (r *memoryConversationRepo) Create(ctx context.Context, c *chat.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.conversations {
		if existing.ListingID == c.ListingID && existing.InquirerID == c.InquirerID {
			return rental_errors.ErrAlreadyExists
		}
	}
	r.s.conversations[c.ID] = *c
	return nil
}

func (r *memoryConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (chat.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return chat.Conversation{}, rental_errors.ErrNotFound
	}
	return c, nil
}

func (r *memoryConversationRepo) GetByListingAndInquirer(ctx context.Context, listingID, inquirerID uuid.UUID) (chat.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.conversations {
		if c.ListingID == listingID && c.InquirerID == inquirerID {
			return c, nil
		}
	}
	return chat.Conversation{}, rental_errors.ErrNotFound
}

func (r *memoryConversationRepo) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]chat.Conversation, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []chat.Conversation
	for _, c := range r.s.conversations {
		if c.IsParticipant(userID) {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *memoryConversationRepo) ConversationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for id, c := range r.s.conversations {
		if c.IsParticipant(userID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memoryConversationRepo) TouchUpdatedAt(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return rental_errors.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	r.s.conversations[id] = c
	return nil
}

func (r *memoryConversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.conversations, id)
	delete(r.s.sequences, id)
	for msgID, m := range r.s.messages {
		if m.ConversationID == id {
			delete(r.s.messages, msgID)
		}
	}
	for key := range r.s.watermarks {
		if key.conversationID == id {
			delete(r.s.watermarks, key)
		}
	}
	return nil
}

func (r *memoryConversationRepo) NextSequence(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sequences[conversationID]++
	return r.s.sequences[conversationID], nil
}

type memoryMessageRepo struct{ s *MemoryStore }

func (r *memoryMessageRepo) Create(ctx context.Context, m *chat.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.messages[m.ID] = *m
	return nil
}

func (r *memoryMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (chat.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return chat.Message{}, rental_errors.ErrNotFound
	}
	return m, nil
}

func (r *memoryMessageRepo) ListBefore(ctx context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]chat.Message, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var page []chat.Message
	for _, m := range r.s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if beforeSeq > 0 && m.SeqID >= beforeSeq {
			continue
		}
		page = append(page, m)
	}
	sort.Slice(page, func(i, j int) bool { return page[i].SeqID > page[j].SeqID })

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	return page, hasMore, nil
}

func (r *memoryMessageRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.Deleted() {
		return rental_errors.ErrNotFound
	}
	m.Content = ""
	m.DeletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	r.s.messages[id] = m
	return nil
}

func (r *memoryMessageRepo) CountUnread(ctx context.Context, conversationID uuid.UUID, afterSeq int64, excludeSender uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID && m.SeqID > afterSeq && m.SenderID != excludeSender && !m.Deleted() {
			count++
		}
	}
	return count, nil
}

type memoryWatermarkRepo struct{ s *MemoryStore }

func (r *memoryWatermarkRepo) Get(ctx context.Context, conversationID, userID uuid.UUID) (chat.ReadWatermark, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return chat.ReadWatermark{
		ConversationID: conversationID,
		UserID:         userID,
		LastReadSeq:    r.s.watermarks[watermarkKey{conversationID, userID}],
	}, nil
}

func (r *memoryWatermarkRepo) UpsertMax(ctx context.Context, conversationID, userID uuid.UUID, seq int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := watermarkKey{conversationID, userID}
	if seq > r.s.watermarks[key] {
		r.s.watermarks[key] = seq
	}
	return r.s.watermarks[key], nil
}

type memoryDirectory struct{ s *MemoryStore }

func (d *memoryDirectory) Get(ctx context.Context, listingID uuid.UUID) (listing.Listing, error) {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	l, ok := d.s.listings[listingID]
	if !ok {
		return listing.Listing{}, rental_errors.ErrNotFound
	}
	return l, nil
}
