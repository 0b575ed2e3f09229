package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samujjwal/rental-sub011/internal/auth"
	"github.com/samujjwal/rental-sub011/internal/repository"
	"github.com/samujjwal/rental-sub011/internal/services"
	"github.com/samujjwal/rental-sub011/pkg/events"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const testSecret = "gateway-test-secret"

// testGateway is a live websocket gateway over in-memory storage.
type testGateway struct {
	store  *repository.MemoryStore
	chat   *services.ChatService
	hub    *Hub
	server *httptest.Server
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	store := repository.NewMemoryStore()
	broker := events.NewMemoryBroker()

	convRepo := store.Conversations()
	msgRepo := store.Messages()
	watermarkRepo := store.Watermarks()

	unread := services.NewUnreadService(convRepo, msgRepo, watermarkRepo, nil)
	chatService := services.NewChatService(nil, convRepo, msgRepo, watermarkRepo, store.ListingDirectory(), broker, unread)

	hub := NewHub(broker, chatService)
	go hub.Run()
	t.Cleanup(hub.Stop)

	verifier := auth.NewJWTVerifier(testSecret)
	wsHandler := NewWebSocketHandler(hub, verifier, time.Second)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/ws", wsHandler.Handle)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &testGateway{store: store, chat: chatService, hub: hub, server: srv}
}

func (g *testGateway) wsURL() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws"
}

func mintToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.AccessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame ClientFrame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

// framesUntil reads frames until one of the wanted type arrives, returning
// everything read including it. The write pump batches queued frames
// newline-separated into one websocket message.
func framesUntil(t *testing.T, conn *websocket.Conn, frameType string) []ServerFrame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	conn.SetReadDeadline(deadline)

	var seen []ServerFrame
	for time.Now().Before(deadline) {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q frame", frameType)

		for _, raw := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			var frame ServerFrame
			require.NoError(t, json.Unmarshal([]byte(raw), &frame))
			seen = append(seen, frame)
			if frame.Type == frameType {
				return seen
			}
		}
	}
	t.Fatalf("no %q frame received", frameType)
	return nil
}

// awaitFrame reads until a frame of the wanted type arrives.
func awaitFrame(t *testing.T, conn *websocket.Conn, frameType string) ServerFrame {
	t.Helper()
	frames := framesUntil(t, conn, frameType)
	return frames[len(frames)-1]
}
