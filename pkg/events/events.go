package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Event types carried on the chat channel.
const (
	EventMessageNew       = "message.new"
	EventConversationNew  = "conversation.new"
	EventConversationRead = "conversation.read"
)

// ChatChannel is the broker channel all conversation events flow through.
// Routing to per-conversation rooms happens in the gateway hub.
const ChatChannel = "chat.events"

type Event struct {
	Type           string          `json:"type"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	UserIDs        []uuid.UUID     `json:"user_ids,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Timestamp      int64           `json:"timestamp"`
}

type Handler func(ctx context.Context, event Event) error

type Publisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler Handler) error
}

type Broker interface {
	Publisher
	Subscriber
}
