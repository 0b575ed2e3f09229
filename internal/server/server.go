package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/samujjwal/rental-sub011/config"
	"github.com/samujjwal/rental-sub011/internal/auth"
	"github.com/samujjwal/rental-sub011/internal/handler"
	"github.com/samujjwal/rental-sub011/internal/middleware"
	"github.com/samujjwal/rental-sub011/internal/transport/httpdto"
	"github.com/samujjwal/rental-sub011/pkg/database"
	"github.com/samujjwal/rental-sub011/pkg/logger"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	WebSocket    *WebSocketHandler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, verifier auth.TokenVerifier, db *gorm.DB) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.AllowedOrigin))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(db); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	// The websocket handshake carries its own credential extraction chain.
	s.engine.GET("/ws", handlers.WebSocket.Handle)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(verifier))
	{
		v1.POST("/conversations", handlers.Conversation.CreateOrGet)
		v1.GET("/conversations", handlers.Conversation.List)
		v1.GET("/conversations/:id", handlers.Conversation.GetByID)
		v1.DELETE("/conversations/:id", handlers.Conversation.Delete)
		v1.GET("/conversations/:id/messages", handlers.Message.List)
		v1.POST("/conversations/:id/messages", handlers.Message.Send)
		v1.POST("/conversations/:id/read", handlers.Message.MarkRead)
		v1.GET("/conversations/:id/unread", handlers.Conversation.Unread)
		v1.GET("/unread", handlers.Conversation.TotalUnread)
		v1.DELETE("/messages/:id", handlers.Message.Delete)
	}
}

func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
