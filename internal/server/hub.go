package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samujjwal/rental-sub011/internal/domain/chat"
	"github.com/samujjwal/rental-sub011/pkg/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxConnectionsPerUser = 10

// ChatBackend is the slice of the conversation store the gateway drives:
// frame handling writes through it and registration reads room membership
// from it.
type ChatBackend interface {
	AppendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content string) (chat.Message, error)
	MarkRead(ctx context.Context, conversationID, userID, upToMessageID uuid.UUID) (int64, error)
	ConversationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Hub maintains the set of live clients and fans events out to the
// per-conversation rooms they have joined. Room membership is derived from
// the store at registration time and refreshed when a new conversation names
// a connected user. All membership mutation happens under h.mu.
type Hub struct {
	clients     map[uuid.UUID]map[string]*Client
	register    chan *Client
	unregister  chan *Client
	broadcast   chan events.Event
	broker      events.Broker
	chatService ChatBackend
	rateLimiter *ConnectionRateLimiter
	logger      *zap.Logger
	mu          sync.RWMutex
	stopChan    chan struct{}
	isRunning   int32
}

// ConnectionRateLimiter tracks connection attempts per user.
type ConnectionRateLimiter struct {
	connectionsPerUser map[uuid.UUID][]time.Time
	mu                 sync.Mutex
}

func NewConnectionRateLimiter() *ConnectionRateLimiter {
	return &ConnectionRateLimiter{
		connectionsPerUser: make(map[uuid.UUID][]time.Time),
	}
}

func (w *ConnectionRateLimiter) AllowConnection(userID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-1 * time.Minute)

	valid := w.connectionsPerUser[userID][:0]
	for _, t := range w.connectionsPerUser[userID] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= maxConnectionsPerUser {
		w.connectionsPerUser[userID] = valid
		return false
	}

	w.connectionsPerUser[userID] = append(valid, now)
	return true
}

// NewHub creates a new Hub
func NewHub(broker events.Broker, chatService ChatBackend) *Hub {
	return &Hub{
		clients:     make(map[uuid.UUID]map[string]*Client),
		register:    make(chan *Client, 256),
		unregister:  make(chan *Client, 256),
		broadcast:   make(chan events.Event, 256),
		broker:      broker,
		chatService: chatService,
		rateLimiter: NewConnectionRateLimiter(),
		logger:      zap.L().With(zap.String("component", "hub")),
		stopChan:    make(chan struct{}),
	}
}

// Run starts the Hub loop. Blocks until Stop is called.
func (h *Hub) Run() {
	atomic.StoreInt32(&h.isRunning, 1)
	defer atomic.StoreInt32(&h.isRunning, 0)

	h.subscribeToEvents()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case event := <-h.broadcast:
			h.handleEvent(event)

		case <-h.stopChan:
			return
		}
	}
}

func (h *Hub) subscribeToEvents() {
	if h.broker == nil {
		return
	}
	h.broker.Subscribe(context.Background(), events.ChatChannel, func(ctx context.Context, event events.Event) error {
		select {
		case h.broadcast <- event:
		case <-h.stopChan:
		}
		return nil
	})
}

func (h *Hub) handleRegister(client *Client) {
	if !h.rateLimiter.AllowConnection(client.userID()) {
		client.logger.Warn("connection rate limit exceeded")
		h.removeClient(client)
		return
	}

	// Room membership is loaded before taking h.mu so fan-out never stalls
	// on the store. A failed load refuses the connection rather than
	// registering a client that would silently receive nothing.
	var rooms []uuid.UUID
	if h.chatService != nil {
		ids, err := h.chatService.ConversationIDsForUser(context.Background(), client.userID())
		if err != nil {
			client.logger.Error("load conversation memberships failed", zap.Error(err))
			h.removeClient(client)
			return
		}
		rooms = ids
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID()] == nil {
		h.clients[client.userID()] = make(map[string]*Client)
	}

	if len(h.clients[client.userID()]) >= maxConnectionsPerUser {
		client.logger.Warn("max connections per user reached")
		for id, c := range h.clients[client.userID()] {
			h.removeClient(c)
			delete(h.clients[client.userID()], id)
			break
		}
	}

	h.clients[client.userID()][client.clientID] = client

	for _, id := range rooms {
		client.conversations[id] = true
	}

	client.logger.Info("connected")

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if userClients, ok := h.clients[client.userID()]; ok {
		if _, ok := userClients[client.clientID]; ok {
			delete(userClients, client.clientID)
			h.removeClient(client)

			if len(userClients) == 0 {
				delete(h.clients, client.userID())
			}

			client.logger.Info("disconnected")
		}
	}
}

// removeClient never closes client.send: the client's readPump may still be
// inside a frame handler that enqueues, and a send on a closed channel would
// take down the process.
func (h *Hub) removeClient(client *Client) {
	client.close()
	client.conn.Close()
}

func (h *Hub) handleEvent(event events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A new conversation refreshes room membership for connected participants.
	if event.Type == events.EventConversationNew {
		for _, userID := range event.UserIDs {
			for _, client := range h.clients[userID] {
				client.conversations[event.ConversationID] = true
			}
		}
	}

	frame, err := json.Marshal(ServerFrame{Type: event.Type, Payload: event.Payload})
	if err != nil {
		h.logger.Error("marshal event frame failed", zap.String("type", event.Type), zap.Error(err))
		return
	}

	h.broadcastToConversation(event.ConversationID, frame)
}

// broadcastToConversation delivers to every member connection, the sender's
// own devices included, so all of a user's clients converge.
func (h *Hub) broadcastToConversation(convID uuid.UUID, data []byte) {
	for _, userClients := range h.clients {
		for _, client := range userClients {
			if client.conversations[convID] {
				client.enqueue(data)
			}
		}
	}
}

// Stop gracefully shuts down the Hub
func (h *Hub) Stop() {
	close(h.stopChan)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userClients := range h.clients {
		for _, client := range userClients {
			h.removeClient(client)
		}
	}
	h.clients = make(map[uuid.UUID]map[string]*Client)
}
