package httpdto

import (
	"time"

	"github.com/samujjwal/rental-sub011/internal/domain/chat"
)

// CreateConversationRequest is used for POST /conversations. The caller must
// be either the listing owner or the counterpart.
type CreateConversationRequest struct {
	ListingID     string `json:"listing_id" binding:"required"`
	CounterpartID string `json:"counterpart_id" binding:"required"`
}

// ConversationDTO represents a conversation in API responses
type ConversationDTO struct {
	ID         string `json:"id"`
	ListingID  string `json:"listing_id"`
	OwnerID    string `json:"owner_id"`
	InquirerID string `json:"inquirer_id"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// ListConversationsResponse is returned when listing conversations
type ListConversationsResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
	Total         int64             `json:"total"`
}

// UnreadCountResponse carries a single unread counter
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

// MarkReadRequest is used for POST /conversations/:id/read
type MarkReadRequest struct {
	UpToMessageID string `json:"up_to_message_id" binding:"required"`
}

// MarkReadResponse returns the stored watermark after the call
type MarkReadResponse struct {
	LastReadSeq int64 `json:"last_read_seq"`
}

func FromConversation(c chat.Conversation) ConversationDTO {
	return ConversationDTO{
		ID:         c.ID.String(),
		ListingID:  c.ListingID.String(),
		OwnerID:    c.OwnerID.String(),
		InquirerID: c.InquirerID.String(),
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  c.UpdatedAt.Format(time.RFC3339),
	}
}

func FromConversationSlice(items []chat.Conversation) []ConversationDTO {
	dtos := make([]ConversationDTO, 0, len(items))
	for _, c := range items {
		dtos = append(dtos, FromConversation(c))
	}
	return dtos
}
