package events

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker carries events across process boundaries so gateway nodes
// other than the one that persisted a message still fan it out.
type RedisBroker struct {
	Client *goredis.Client
	logger *zap.Logger
}

func NewRedisBroker(client *goredis.Client) *RedisBroker {
	return &RedisBroker{
		Client: client,
		logger: zap.L().With(zap.String("component", "redis_broker")),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.Client.Publish(ctx, channel, data).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	pubsub := b.Client.Subscribe(ctx, channel)

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for msg := range ch {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Error("unmarshal event failed", zap.Error(err))
				continue
			}
			if err := handler(ctx, event); err != nil {
				b.logger.Error("handle event failed", zap.String("type", event.Type), zap.Error(err))
			}
		}
	}()

	return nil
}
