package repository

import (
	"context"
	"errors"

	"github.com/samujjwal/rental-sub011/internal/domain/chat"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresWatermarkRepository struct {
	db *gorm.DB
}

func NewWatermarkRepository(db *gorm.DB) WatermarkRepository {
	return &PostgresWatermarkRepository{db: db}
}

// Get returns the user's watermark, or a zero-sequence watermark when the
// user has never read the conversation.
func (r *PostgresWatermarkRepository) Get(ctx context.Context, conversationID, userID uuid.UUID) (chat.ReadWatermark, error) {
	var w chat.ReadWatermark
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.ReadWatermark{ConversationID: conversationID, UserID: userID}, nil
		}
		return chat.ReadWatermark{}, err
	}
	return w, nil
}

// UpsertMax bumps the watermark to at most max(current, seq) and returns the
// stored value. Concurrent calls from multiple devices converge on the
// maximum; the watermark never regresses.
func (r *PostgresWatermarkRepository) UpsertMax(ctx context.Context, conversationID, userID uuid.UUID, seq int64) (int64, error) {
	var current int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO read_watermarks (conversation_id, user_id, last_read_seq, updated_at)
		VALUES (?, ?, ?, NOW())
		ON CONFLICT (conversation_id, user_id)
		DO UPDATE SET
			last_read_seq = GREATEST(read_watermarks.last_read_seq, EXCLUDED.last_read_seq),
			updated_at = NOW()
		RETURNING last_read_seq`,
		conversationID, userID, seq).Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return current, nil
}
