package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - unread:{conversation_id}:{user_id} - 5m TTL, per-conversation unread count

// UnreadCacheTTL bounds staleness between an invalidation miss and the next
// recompute from the store.
const UnreadCacheTTL = 5 * time.Minute

// UnreadCache keeps per-(conversation, user) unread counts out of the hot
// path. The store stays the source of truth: entries are invalidated on every
// append and mark-read, never written back speculatively.
type UnreadCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewUnreadCache(client *goredis.Client) *UnreadCache {
	return &UnreadCache{client: client, ttl: UnreadCacheTTL}
}

func unreadKey(conversationID, userID uuid.UUID) string {
	return fmt.Sprintf("unread:%s:%s", conversationID, userID)
}

// Get returns (count, true) on a hit, (0, false) on a miss.
func (c *UnreadCache) Get(ctx context.Context, conversationID, userID uuid.UUID) (int64, bool, error) {
	data, err := c.client.Get(ctx, unreadKey(conversationID, userID)).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

func (c *UnreadCache) Set(ctx context.Context, conversationID, userID uuid.UUID, count int64) error {
	return c.client.Set(ctx, unreadKey(conversationID, userID), count, c.ttl).Err()
}

// Invalidate drops the cached counts for the given users of a conversation.
func (c *UnreadCache) Invalidate(ctx context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		keys = append(keys, unreadKey(conversationID, userID))
	}
	return c.client.Del(ctx, keys...).Err()
}
