package services

import (
	"context"

	"github.com/samujjwal/rental-sub011/internal/repository"
	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UnreadCache is satisfied by the redis-backed cache. A nil cache is valid:
// counts are then always computed from the store.
type UnreadCache interface {
	Get(ctx context.Context, conversationID, userID uuid.UUID) (int64, bool, error)
	Set(ctx context.Context, conversationID, userID uuid.UUID, count int64) error
	Invalidate(ctx context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error
}

// UnreadService derives unread counts from watermarks. Read-only over the
// store; it never mutates messages or watermarks.
type UnreadService struct {
	convRepo      repository.ConversationRepository
	msgRepo       repository.MessageRepository
	watermarkRepo repository.WatermarkRepository
	cache         UnreadCache
	logger        *zap.Logger
}

func NewUnreadService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	watermarkRepo repository.WatermarkRepository,
	cache UnreadCache,
) *UnreadService {
	return &UnreadService{
		convRepo:      convRepo,
		msgRepo:       msgRepo,
		watermarkRepo: watermarkRepo,
		cache:         cache,
		logger:        zap.L().With(zap.String("component", "unread_service")),
	}
}

// UnreadCount is the number of live messages past the user's watermark,
// excluding the user's own messages.
func (s *UnreadService) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.IsParticipant(userID) {
		return 0, rental_errors.ErrNotParticipant
	}
	return s.countFor(ctx, conversationID, userID)
}

// TotalUnreadCount aggregates across every conversation the user participates in.
func (s *UnreadService) TotalUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	ids, err := s.convRepo.ConversationIDsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, id := range ids {
		count, err := s.countFor(ctx, id, userID)
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

// Invalidate drops cached counts. Cache errors are logged, not surfaced: the
// store is the source of truth and the TTL bounds staleness.
func (s *UnreadService) Invalidate(ctx context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, conversationID, userIDs...); err != nil {
		s.logger.Error("unread cache invalidate failed", zap.Error(err))
	}
}

func (s *UnreadService) countFor(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	if s.cache != nil {
		count, ok, err := s.cache.Get(ctx, conversationID, userID)
		if err != nil {
			s.logger.Error("unread cache get failed", zap.Error(err))
		} else if ok {
			return count, nil
		}
	}

	watermark, err := s.watermarkRepo.Get(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	count, err := s.msgRepo.CountUnread(ctx, conversationID, watermark.LastReadSeq, userID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, conversationID, userID, count); err != nil {
			s.logger.Error("unread cache set failed", zap.Error(err))
		}
	}
	return count, nil
}
