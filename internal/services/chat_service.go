package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/samujjwal/rental-sub011/internal/domain/chat"
	"github.com/samujjwal/rental-sub011/internal/listings"
	"github.com/samujjwal/rental-sub011/internal/repository"
	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"
	"github.com/samujjwal/rental-sub011/pkg/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// MessageEventPayload is the wire shape of a message carried on the broker
// and pushed to live connections.
type MessageEventPayload struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	SeqID          int64     `json:"seq_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReadEventPayload is the wire shape of a watermark advance.
type ReadEventPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	LastReadSeq    int64     `json:"last_read_seq"`
}

// ChatService is the conversation store facade: the only component that
// mutates conversations, messages and watermarks. Fan-out events are
// published strictly after the owning transaction commits.
type ChatService struct {
	db            *gorm.DB
	convRepo      repository.ConversationRepository
	msgRepo       repository.MessageRepository
	watermarkRepo repository.WatermarkRepository
	directory     listings.Directory
	publisher     events.Publisher
	unread        *UnreadService
	logger        *zap.Logger
}

func NewChatService(
	db *gorm.DB,
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	watermarkRepo repository.WatermarkRepository,
	directory listings.Directory,
	publisher events.Publisher,
	unread *UnreadService,
) *ChatService {
	return &ChatService{
		db:            db,
		convRepo:      convRepo,
		msgRepo:       msgRepo,
		watermarkRepo: watermarkRepo,
		directory:     directory,
		publisher:     publisher,
		unread:        unread,
		logger:        zap.L().With(zap.String("component", "chat_service")),
	}
}

// CreateOrGetConversation returns the unique conversation for
// (listing, inquirer), creating it if absent. Creation is a compare-and-create
// guarded by the unique index; the loser of a race reads back the winner's row.
func (s *ChatService) CreateOrGetConversation(ctx context.Context, listingID, requesterID, counterpartID uuid.UUID) (chat.Conversation, error) {
	if requesterID == counterpartID {
		return chat.Conversation{}, rental_errors.ErrInvalidInput
	}

	lst, err := s.directory.Get(ctx, listingID)
	if err != nil {
		return chat.Conversation{}, err
	}

	// One side must be the listing owner; the other is the inquirer.
	var inquirerID uuid.UUID
	switch lst.OwnerID {
	case requesterID:
		inquirerID = counterpartID
	case counterpartID:
		inquirerID = requesterID
	default:
		return chat.Conversation{}, rental_errors.ErrInvalidInput
	}

	existing, err := s.convRepo.GetByListingAndInquirer(ctx, listingID, inquirerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, rental_errors.ErrNotFound) {
		return chat.Conversation{}, err
	}

	conv := chat.Conversation{
		ID:         uuid.New(),
		ListingID:  listingID,
		OwnerID:    lst.OwnerID,
		InquirerID: inquirerID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := s.convRepo.Create(ctx, &conv); err != nil {
		if errors.Is(err, rental_errors.ErrAlreadyExists) {
			// Lost the race; the winner's row is the conversation.
			return s.convRepo.GetByListingAndInquirer(ctx, listingID, inquirerID)
		}
		return chat.Conversation{}, err
	}

	s.publish(ctx, events.Event{
		Type:           events.EventConversationNew,
		ConversationID: conv.ID,
		UserIDs:        conv.ParticipantIDs(),
		Timestamp:      time.Now().UnixMilli(),
	})

	return conv, nil
}

// AppendMessage persists a message under the next conversation-local sequence
// and bumps the conversation's updated_at, all in one transaction. The
// broadcast happens only after the transaction commits.
func (s *ChatService) AppendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (chat.Message, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return chat.Message{}, err
	}
	if !conv.IsParticipant(senderID) {
		return chat.Message{}, rental_errors.ErrNotParticipant
	}
	if err := chat.ValidateContent(content); err != nil {
		return chat.Message{}, err
	}

	var msg chat.Message
	if s.db != nil {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			msg, err = appendInTx(ctx, repository.NewConversationRepository(tx), repository.NewMessageRepository(tx), conversationID, senderID, content)
			return err
		})
	} else {
		msg, err = appendInTx(ctx, s.convRepo, s.msgRepo, conversationID, senderID, content)
	}
	if err != nil {
		return chat.Message{}, err
	}

	if s.unread != nil {
		s.unread.Invalidate(ctx, conversationID, conv.Peer(senderID))
	}

	payload, err := json.Marshal(MessageEventPayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		SeqID:          msg.SeqID,
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		return chat.Message{}, err
	}

	s.publish(ctx, events.Event{
		Type:           events.EventMessageNew,
		ConversationID: conversationID,
		Payload:        payload,
		Timestamp:      time.Now().UnixMilli(),
	})

	return msg, nil
}

func appendInTx(ctx context.Context, convRepo repository.ConversationRepository, msgRepo repository.MessageRepository, conversationID, senderID uuid.UUID, content string) (chat.Message, error) {
	seq, err := convRepo.NextSequence(ctx, conversationID)
	if err != nil {
		return chat.Message{}, err
	}

	msg := chat.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		SeqID:          seq,
		CreatedAt:      time.Now(),
	}
	if err := msgRepo.Create(ctx, &msg); err != nil {
		return chat.Message{}, err
	}
	if err := convRepo.TouchUpdatedAt(ctx, conversationID); err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// ListMessages pages a conversation's messages newest-first by sequence.
func (s *ChatService) ListMessages(ctx context.Context, conversationID, requesterID uuid.UUID, beforeSeq int64, limit int) ([]chat.Message, bool, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, false, err
	}
	if !conv.IsParticipant(requesterID) {
		return nil, false, rental_errors.ErrNotParticipant
	}

	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return s.msgRepo.ListBefore(ctx, conversationID, beforeSeq, limit)
}

// MarkRead advances the user's watermark to the given message, as a monotonic
// max. An older message id is a no-op that returns the unchanged watermark.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, userID, upToMessageID uuid.UUID) (int64, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.IsParticipant(userID) {
		return 0, rental_errors.ErrNotParticipant
	}

	msg, err := s.msgRepo.GetByID(ctx, upToMessageID)
	if err != nil {
		return 0, err
	}
	if msg.ConversationID != conversationID {
		return 0, rental_errors.ErrNotFound
	}

	watermark, err := s.watermarkRepo.UpsertMax(ctx, conversationID, userID, msg.SeqID)
	if err != nil {
		return 0, err
	}

	if s.unread != nil {
		s.unread.Invalidate(ctx, conversationID, userID)
	}

	payload, err := json.Marshal(ReadEventPayload{
		ConversationID: conversationID,
		UserID:         userID,
		LastReadSeq:    watermark,
	})
	if err != nil {
		return 0, err
	}

	s.publish(ctx, events.Event{
		Type:           events.EventConversationRead,
		ConversationID: conversationID,
		Payload:        payload,
		Timestamp:      time.Now().UnixMilli(),
	})

	return watermark, nil
}

// DeleteMessage soft-deletes: content is redacted, the row stays so sequence
// cursors held by other clients remain valid. Sender-only.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, requesterID uuid.UUID) error {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return rental_errors.ErrNotParticipant
	}
	if err := s.msgRepo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	if s.unread != nil {
		conv, err := s.convRepo.GetByID(ctx, msg.ConversationID)
		if err == nil {
			s.unread.Invalidate(ctx, msg.ConversationID, conv.Peer(requesterID))
		}
	}
	return nil
}

// DeleteConversation removes the conversation and cascades to its messages,
// watermarks and sequence row.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, requesterID uuid.UUID) error {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsParticipant(requesterID) {
		return rental_errors.ErrNotParticipant
	}
	if err := s.convRepo.Delete(ctx, conversationID); err != nil {
		return err
	}
	if s.unread != nil {
		s.unread.Invalidate(ctx, conversationID, conv.OwnerID, conv.InquirerID)
	}
	return nil
}

func (s *ChatService) GetConversation(ctx context.Context, conversationID, requesterID uuid.UUID) (chat.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return chat.Conversation{}, err
	}
	if !conv.IsParticipant(requesterID) {
		return chat.Conversation{}, rental_errors.ErrNotParticipant
	}
	return conv, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]chat.Conversation, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return s.convRepo.GetUserConversations(ctx, userID, page, limit)
}

// ConversationIDsForUser feeds the gateway's room membership at auth time.
func (s *ChatService) ConversationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.convRepo.ConversationIDsForUser(ctx, userID)
}

func (s *ChatService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.ChatChannel, event); err != nil {
		s.logger.Error("publish event failed", zap.String("type", event.Type), zap.Error(err))
	}
}
