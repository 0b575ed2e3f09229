package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/samujjwal/rental-sub011/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler performs the connection handshake: credential extraction
// in fixed priority order (Authorization header, token query parameter, auth
// frame), verification, then registration with the hub. No room membership
// exists until verification succeeds.
type WebSocketHandler struct {
	hub              *Hub
	verifier         auth.TokenVerifier
	handshakeTimeout time.Duration
	logger           *zap.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *Hub, verifier auth.TokenVerifier, handshakeTimeout time.Duration) *WebSocketHandler {
	return &WebSocketHandler{
		hub:              hub,
		verifier:         verifier,
		handshakeTimeout: handshakeTimeout,
		logger:           zap.L().With(zap.String("component", "gateway")),
	}
}

// Handle upgrades HTTP to WebSocket
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := auth.ExtractToken(c.Request, auth.HandshakeExtractors)

	var identity auth.Identity
	if token != "" {
		id, err := h.verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		identity = id
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade failed", zap.Error(err))
		return
	}

	// No header or query credential: the third source is an auth frame,
	// which must arrive within the handshake window.
	if token == "" {
		id, err := h.awaitAuthFrame(conn)
		if err != nil {
			h.refuse(conn)
			return
		}
		identity = id
	}

	clientID := uuid.New().String()
	client := NewClient(h.hub, conn, identity, clientID)

	h.hub.register <- client
}

func (h *WebSocketHandler) awaitAuthFrame(conn *websocket.Conn) (auth.Identity, error) {
	// The peer is unauthenticated here, so the read limit applies to the
	// handshake frame too.
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, message, err := conn.ReadMessage()
	if err != nil {
		return auth.Identity{}, err
	}

	var frame ClientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return auth.Identity{}, err
	}
	if frame.Type != FrameAuth || frame.Token == "" {
		return auth.Identity{}, websocket.ErrBadHandshake
	}

	return h.verifier.Verify(frame.Token)
}

// refuse sends a distinguishable unauthorized frame and closes. The client
// was never registered, so no partial authentication state is observable.
func (h *WebSocketHandler) refuse(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","code":"UNAUTHORIZED","error":"unauthorized"}`))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"))
	conn.Close()
}
