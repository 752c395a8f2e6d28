package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/api/option"

	"rafi-backend/internal/config"
	"rafi-backend/internal/database"
	"rafi-backend/internal/handlers"
	"rafi-backend/internal/logger"
	"rafi-backend/internal/middleware"
	"rafi-backend/internal/repository"
	"rafi-backend/internal/router"
	"rafi-backend/internal/services"
	"rafi-backend/internal/websocket"
)

func main() {
	cfg := config.Load()
	log := logger.FromEnv(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting rafi backend", "env", cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// ──── Gemini proxy ────
	var chatService *services.ChatService
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY is not set; chat requests will fail with a configuration error")
		chatService = services.NewChatService(nil, cfg.GeminiSystemInstruction, log)
	} else {
		geminiClient, err := services.NewGeminiClient(
			context.Background(),
			cfg.GeminiAPIKey,
			cfg.GeminiModel,
			option.WithEndpoint(cfg.GeminiBaseURL),
		)
		if err != nil {
			log.Error("gemini client init failed", "error", err)
			os.Exit(1)
		}
		defer geminiClient.Close()
		chatService = services.NewChatService(geminiClient, cfg.GeminiSystemInstruction, log)
		log.Info("gemini proxy ready", "model", cfg.GeminiModel)
	}
	chatHandler := handlers.NewChatHandler(chatService, log)

	var (
		jwtAuth             *middleware.JWTAuth
		conversationHandler *handlers.ConversationHandler
		wsHub               *websocket.Hub
	)

	// ──── Persistence ────
	if cfg.PersistenceEnabled() {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		log.Info("postgres connected")

		if err := database.RunMigrations(pool, "migrations", log); err != nil {
			log.Error("database migration failed", "error", err)
			os.Exit(1)
		}

		jwtAuth = middleware.NewJWTAuth(cfg.JWTSecret)

		var events services.EventPublisher
		if cfg.RedisURL != "" {
			redisClient, err := database.NewRedisClient(cfg.RedisURL)
			if err != nil {
				log.Error("redis connection failed", "error", err)
				os.Exit(1)
			}
			defer redisClient.Close()
			log.Info("redis connected")

			events = services.NewRedisPublisher(redisClient, log)
			wsHub = websocket.NewHub(redisClient, jwtAuth, log)
			defer wsHub.Close()
		}

		sessionService := services.NewSessionService(
			repository.NewConversationRepo(pool),
			repository.NewMessageRepo(pool),
			chatService,
			events,
			log,
		)
		conversationHandler = handlers.NewConversationHandler(sessionService)
	} else {
		log.Info("DATABASE_URL not set; serving the chat proxy only")
	}

	r := router.New(log, chatHandler, jwtAuth, conversationHandler, wsHub)

	// WriteTimeout must outlast the 30s reply timeout of the session flow.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: services.ReplyTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Info("rafi backend ready", "addr", "http://localhost:"+cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
