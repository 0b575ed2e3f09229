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

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *chat.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return rental_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (chat.Message, error) {
	var m chat.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Message{}, rental_errors.ErrNotFound
		}
		return chat.Message{}, err
	}
	return m, nil
}

// ListBefore pages messages in descending sequence order. Soft-deleted rows
// are returned (redacted) so cursors held across a deletion stay stable.
// hasMore is true when another page exists past the returned one.
func (r *PostgresMessageRepository) ListBefore(ctx context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]chat.Message, bool, error) {
	var messages []chat.Message
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID)

	if beforeSeq > 0 {
		q = q.Where("seq_id < ?", beforeSeq)
	}

	err := q.Order("seq_id DESC").Limit(limit + 1).Find(&messages).Error
	if err != nil {
		return nil, false, err
	}

	hasMore := false
	if len(messages) > limit {
		hasMore = true
		messages = messages[:limit]
	}
	return messages, hasMore, nil
}

// SoftDelete redacts the body and keeps the row for ordering continuity.
func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&chat.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"content":    "",
			"deleted_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rental_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) CountUnread(ctx context.Context, conversationID uuid.UUID, afterSeq int64, excludeSender uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&chat.Message{}).
		Where("conversation_id = ? AND seq_id > ? AND sender_id != ? AND deleted_at IS NULL",
			conversationID, afterSeq, excludeSender).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
