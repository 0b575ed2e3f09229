package httpdto

import (
	"time"

	"github.com/samujjwal/rental-sub011/internal/domain/chat"
)

// SendMessageRequest is used for POST /conversations/:id/messages
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MessageDTO represents a message in API responses. Soft-deleted messages
// keep their slot in the sequence but carry no content.
type MessageDTO struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	SeqID          int64  `json:"seq_id"`
	CreatedAt      string `json:"created_at"`
	Deleted        bool   `json:"deleted,omitempty"`
}

// ListMessagesResponse is a sequence-cursored page, newest first.
type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
	HasMore  bool         `json:"has_more"`
	// NextBeforeSeq is the cursor for the following page; 0 when HasMore is false.
	NextBeforeSeq int64 `json:"next_before_seq,omitempty"`
}

func FromMessage(m chat.Message) MessageDTO {
	return MessageDTO{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Content:        m.Content,
		SeqID:          m.SeqID,
		CreatedAt:      m.CreatedAt.Format(time.RFC3339),
		Deleted:        m.Deleted(),
	}
}

func FromMessageSlice(items []chat.Message) []MessageDTO {
	dtos := make([]MessageDTO, 0, len(items))
	for _, m := range items {
		dtos = append(dtos, FromMessage(m))
	}
	return dtos
}
