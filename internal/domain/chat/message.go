package chat

import (
	"database/sql"
	"strings"
	"time"
	"unicode/utf8"

	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"

	"github.com/google/uuid"
)

// MaxContentLength bounds message bodies, counted in runes.
const MaxContentLength = 4000

// Message represents the messages table. SeqID is the conversation-local
// order key allocated at insert time; it totally orders messages regardless
// of wall-clock skew. Soft deletion redacts Content and sets DeletedAt, the
// row stays so sequence-based cursors keep working.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;index:idx_messages_conversation_seq,priority:1;not null"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null"`
	Content        string
	SeqID          int64 `gorm:"index:idx_messages_conversation_seq,priority:2;not null"`
	CreatedAt      time.Time
	DeletedAt      sql.NullTime
}

func (Message) TableName() string {
	return "messages"
}

// Deleted reports whether the message has been soft-deleted.
func (m Message) Deleted() bool {
	return m.DeletedAt.Valid
}

// ValidateContent enforces the non-empty, length-bounded body rule.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return rental_errors.ErrInvalidContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return rental_errors.ErrInvalidContent
	}
	return nil
}
