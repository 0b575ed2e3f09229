package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samujjwal/rental-sub011/internal/auth"
	rental_errors "github.com/samujjwal/rental-sub011/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Rate limits per minute
type RateLimits struct {
	MaxSendMessages int
	MaxReadReceipts int
	MaxPingMessages int
}

var DefaultRateLimits = RateLimits{
	MaxSendMessages: 60,
	MaxReadReceipts: 120,
	MaxPingMessages: 60,
}

// ClientRateLimiter tracks rate limits per client
type ClientRateLimiter struct {
	sendTokens int
	readTokens int
	pingTokens int
	lastRefill time.Time
	mu         sync.Mutex
}

func NewClientRateLimiter() *ClientRateLimiter {
	return &ClientRateLimiter{
		sendTokens: DefaultRateLimits.MaxSendMessages,
		readTokens: DefaultRateLimits.MaxReadReceipts,
		pingTokens: DefaultRateLimits.MaxPingMessages,
		lastRefill: time.Now(),
	}
}

func (rl *ClientRateLimiter) Allow(frameType string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.sendTokens = DefaultRateLimits.MaxSendMessages
		rl.readTokens = DefaultRateLimits.MaxReadReceipts
		rl.pingTokens = DefaultRateLimits.MaxPingMessages
		rl.lastRefill = now
	}

	switch frameType {
	case FrameMessageSend:
		if rl.sendTokens > 0 {
			rl.sendTokens--
			return true
		}
	case FrameRead:
		if rl.readTokens > 0 {
			rl.readTokens--
			return true
		}
	case FramePing:
		if rl.pingTokens > 0 {
			rl.pingTokens--
			return true
		}
	}
	return false
}

// Client frame types.
const (
	FrameAuth        = "auth"
	FrameMessageSend = "message.send"
	FrameRead        = "read"
	FramePing        = "ping"
)

// ClientFrame is the envelope for frames arriving from a connection.
type ClientFrame struct {
	Type           string    `json:"type"`
	Token          string    `json:"token,omitempty"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
	MessageID      uuid.UUID `json:"message_id,omitempty"`
	Content        string    `json:"content,omitempty"`
}

// ServerFrame is the envelope for frames pushed to a connection.
type ServerFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client represents a single authenticated WebSocket connection. The identity
// is fixed at handshake time; joined conversation rooms are recomputed from
// the store when the client registers and refreshed on new conversations.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	done          chan struct{}
	closeOnce     sync.Once
	identity      auth.Identity
	clientID      string
	conversations map[uuid.UUID]bool
	rateLimiter   *ClientRateLimiter
	lastActivity  atomic.Int64
	logger        *zap.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, identity auth.Identity, clientID string) *Client {
	c := &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		done:          make(chan struct{}),
		identity:      identity,
		clientID:      clientID,
		conversations: make(map[uuid.UUID]bool),
		rateLimiter:   NewClientRateLimiter(),
		logger:        connLogger(identity.UserID, clientID),
	}
	c.touch()
	return c
}

func (c *Client) userID() uuid.UUID {
	return c.identity.UserID
}

// close marks the connection dead. The send channel is never closed: frames
// enqueued afterwards are dropped, and writePump exits on done. readPump may
// still be mid-frame when the hub evicts this client, so enqueue must stay
// safe to call after close.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Client) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected close", zap.Error(err))
			}
			break
		}

		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		c.touch()

		if err := c.handleFrame(message); err != nil {
			c.logger.Error("handle frame failed", zap.Error(err))
		}
	}
}

func (c *Client) handleFrame(message []byte) error {
	var frame ClientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.sendError(rental_errors.ErrInvalidInput)
		return err
	}

	if frame.Type != FrameAuth && !c.rateLimiter.Allow(frame.Type) {
		c.logger.Warn("rate limit exceeded", zap.String("frame_type", frame.Type))
		c.sendError(rental_errors.ErrRateLimited)
		return nil
	}

	switch frame.Type {
	case FrameAuth:
		// Already authenticated; a second auth frame is a no-op.
		return nil
	case FrameMessageSend:
		return c.handleSendMessage(frame)
	case FrameRead:
		return c.handleRead(frame)
	case FramePing:
		return c.handlePing()
	default:
		c.logger.Warn("unknown frame type", zap.String("frame_type", frame.Type))
		return nil
	}
}

// handleSendMessage persists via the store; the broadcast arrives through the
// broker once the write commits. Failures go back to this connection only.
func (c *Client) handleSendMessage(frame ClientFrame) error {
	if c.hub.chatService == nil {
		return nil
	}
	_, err := c.hub.chatService.AppendMessage(
		context.Background(),
		frame.ConversationID,
		c.userID(),
		frame.Content,
	)
	if err != nil {
		c.sendError(err)
	}
	return nil
}

func (c *Client) handleRead(frame ClientFrame) error {
	if c.hub.chatService == nil {
		return nil
	}
	_, err := c.hub.chatService.MarkRead(
		context.Background(),
		frame.ConversationID,
		c.userID(),
		frame.MessageID,
	)
	if err != nil {
		c.sendError(err)
	}
	return nil
}

func (c *Client) handlePing() error {
	c.enqueue([]byte(`{"type":"pong"}`))
	return nil
}

func (c *Client) sendError(err error) {
	data, marshalErr := json.Marshal(ServerFrame{
		Type:  "error",
		Code:  errorCode(err),
		Error: err.Error(),
	})
	if marshalErr != nil {
		return
	}
	c.enqueue(data)
}

func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full")
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, rental_errors.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, rental_errors.ErrNotParticipant):
		return "NOT_PARTICIPANT"
	case errors.Is(err, rental_errors.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, rental_errors.ErrInvalidContent):
		return "INVALID_CONTENT"
	case errors.Is(err, rental_errors.ErrRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if c.idleFor() > pongWait*2 {
				c.logger.Info("idle timeout")
				return
			}
		}
	}
}
