package repository

import (
	"context"

	"github.com/samujjwal/rental-sub011/internal/domain/chat"

	"github.com/google/uuid"
)

// ConversationRepository persists conversations and their order-key allocator.
type ConversationRepository interface {
	Create(ctx context.Context, c *chat.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (chat.Conversation, error)
	GetByListingAndInquirer(ctx context.Context, listingID, inquirerID uuid.UUID) (chat.Conversation, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]chat.Conversation, int64, error)
	ConversationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	TouchUpdatedAt(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	NextSequence(ctx context.Context, conversationID uuid.UUID) (int64, error)
}

// MessageRepository persists messages keyed by conversation-local sequence.
type MessageRepository interface {
	Create(ctx context.Context, m *chat.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (chat.Message, error)
	ListBefore(ctx context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]chat.Message, bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	CountUnread(ctx context.Context, conversationID uuid.UUID, afterSeq int64, excludeSender uuid.UUID) (int64, error)
}

// WatermarkRepository persists per-(conversation, user) read watermarks.
type WatermarkRepository interface {
	Get(ctx context.Context, conversationID, userID uuid.UUID) (chat.ReadWatermark, error)
	UpsertMax(ctx context.Context, conversationID, userID uuid.UUID, seq int64) (int64, error)
}
