package repository

import (
	"context"
	"errors"
	"time"

	"github.com/samujjwal/rental-sub011/internal/domain/chat"
	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *chat.Conversation) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return rental_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (chat.Conversation, error) {
	var c chat.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Conversation{}, rental_errors.ErrNotFound
		}
		return chat.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetByListingAndInquirer(ctx context.Context, listingID, inquirerID uuid.UUID) (chat.Conversation, error) {
	var c chat.Conversation
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND inquirer_id = ?", listingID, inquirerID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Conversation{}, rental_errors.ErrNotFound
		}
		return chat.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]chat.Conversation, int64, error) {
	var conversations []chat.Conversation
	var total int64

	q := r.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("owner_id = ? OR inquirer_id = ?", userID, userID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := q.
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *PostgresConversationRepository) ConversationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("owner_id = ? OR inquirer_id = ?", userID, userID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresConversationRepository) TouchUpdatedAt(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rental_errors.ErrNotFound
	}
	return nil
}

// Delete removes a conversation and everything hanging off it.
func (r *PostgresConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&chat.Message{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&chat.ReadWatermark{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&chat.ConversationSequence{}, "conversation_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&chat.Conversation{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return rental_errors.ErrNotFound
		}
		return nil
	})
}

// NextSequence allocates the next conversation-local order key. A single
// atomic upsert: the first sender inserts the row at 1 and later senders
// increment under the row lock the update takes, so two senders racing the
// first message resolve through the conflict branch instead of erroring.
func (r *PostgresConversationRepository) NextSequence(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO conversation_sequences (conversation_id, last_sequence, updated_at)
		VALUES (?, 1, NOW())
		ON CONFLICT (conversation_id)
		DO UPDATE SET
			last_sequence = conversation_sequences.last_sequence + 1,
			updated_at = NOW()
		RETURNING last_sequence`,
		conversationID).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}
