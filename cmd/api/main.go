package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/samujjwal/rental-sub011/config"
	"github.com/samujjwal/rental-sub011/internal/auth"
	"github.com/samujjwal/rental-sub011/internal/handler"
	"github.com/samujjwal/rental-sub011/internal/listings"
	rentalredis "github.com/samujjwal/rental-sub011/internal/redis"
	"github.com/samujjwal/rental-sub011/internal/repository"
	"github.com/samujjwal/rental-sub011/internal/server"
	"github.com/samujjwal/rental-sub011/internal/services"
	"github.com/samujjwal/rental-sub011/pkg/database"
	"github.com/samujjwal/rental-sub011/pkg/events"
	"github.com/samujjwal/rental-sub011/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	defer l.Sync()
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		l.Errorf("Failed to connect to the database: %s", err)
		return
	}

	redisClient := rentalredis.NewClient(rentalredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	broker := events.NewRedisBroker(redisClient)
	unreadCache := rentalredis.NewUnreadCache(redisClient)

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	watermarkRepo := repository.NewWatermarkRepository(db)
	directory := listings.NewDirectory(db)

	unreadService := services.NewUnreadService(convRepo, msgRepo, watermarkRepo, unreadCache)
	chatService := services.NewChatService(db, convRepo, msgRepo, watermarkRepo, directory, broker, unreadService)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	hub := server.NewHub(broker, chatService)
	go hub.Run()

	wsHandler := server.NewWebSocketHandler(hub, verifier, time.Duration(cfg.AuthHandshakeSec)*time.Second)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(chatService, unreadService),
		Message:      handler.NewMessageHandler(chatService),
		WebSocket:    wsHandler,
	}, verifier, db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		hub.Stop()
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil {
		l.Errorf("Server exited with error: %s", err)
	}
}
