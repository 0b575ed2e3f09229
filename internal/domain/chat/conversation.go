package chat

import (
	"time"

	"github.com/google/uuid"
)

// Conversation represents the conversations table. Exactly two participants:
// the listing owner and the inquirer. The (listing_id, inquirer_id) pair is
// the canonical dedup key because the owner side is fixed by the listing.
type Conversation struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ListingID  uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_conversations_listing_inquirer;not null"`
	OwnerID    uuid.UUID `gorm:"type:uuid;not null"`
	InquirerID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_conversations_listing_inquirer;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time `gorm:"index"`
}

// ConversationSequence represents the conversation_sequences table. It is the
// per-conversation order-key allocator; LastSequence only ever grows.
type ConversationSequence struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastSequence   int64
	UpdatedAt      time.Time
}

// ReadWatermark represents the read_watermarks table: the highest sequence a
// user has acknowledged in a conversation. Monotonically non-decreasing.
type ReadWatermark struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastReadSeq    int64
	UpdatedAt      time.Time
}

func (Conversation) TableName() string {
	return "conversations"
}

func (ConversationSequence) TableName() string {
	return "conversation_sequences"
}

func (ReadWatermark) TableName() string {
	return "read_watermarks"
}

// IsParticipant reports whether userID is one of the two conversation parties.
func (c Conversation) IsParticipant(userID uuid.UUID) bool {
	return userID == c.OwnerID || userID == c.InquirerID
}

// ParticipantIDs returns both parties, owner first.
func (c Conversation) ParticipantIDs() []uuid.UUID {
	return []uuid.UUID{c.OwnerID, c.InquirerID}
}

// Peer returns the other participant.
func (c Conversation) Peer(userID uuid.UUID) uuid.UUID {
	if userID == c.OwnerID {
		return c.InquirerID
	}
	return c.OwnerID
}
