package services

import (
	"context"
	"sync"

	"github.com/samujjwal/rental-sub011/internal/repository"
	"github.com/samujjwal/rental-sub011/pkg/events"
)

// testEnv wires the services over the in-memory store with a memory broker;
// published events are captured in order.
type testEnv struct {
	store  *repository.MemoryStore
	chat   *ChatService
	unread *UnreadService

	mu        sync.Mutex
	published []events.Event
}

func newTestEnv() *testEnv {
	env := &testEnv{store: repository.NewMemoryStore()}

	broker := events.NewMemoryBroker()
	broker.Subscribe(context.Background(), events.ChatChannel, func(ctx context.Context, event events.Event) error {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.published = append(env.published, event)
		return nil
	})

	convRepo := env.store.Conversations()
	msgRepo := env.store.Messages()
	watermarkRepo := env.store.Watermarks()

	env.unread = NewUnreadService(convRepo, msgRepo, watermarkRepo, nil)
	env.chat = NewChatService(nil, convRepo, msgRepo, watermarkRepo, env.store.ListingDirectory(), broker, env.unread)
	return env
}

func (env *testEnv) events() []events.Event {
	env.mu.Lock()
	defer env.mu.Unlock()
	out := make([]events.Event, len(env.published))
	copy(out, env.published)
	return out
}

func (env *testEnv) eventsOfType(eventType string) []events.Event {
	var out []events.Event
	for _, e := range env.events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
