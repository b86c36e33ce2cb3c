package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/config"
	"github.com/Hamxay/-WhatsApp-API-server/internal/handler"
	"github.com/Hamxay/-WhatsApp-API-server/internal/messaging"
	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"
	"github.com/Hamxay/-WhatsApp-API-server/internal/repository/postgres"
	"github.com/Hamxay/-WhatsApp-API-server/internal/service"
	"github.com/Hamxay/-WhatsApp-API-server/internal/storage"
	"github.com/Hamxay/-WhatsApp-API-server/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting chat server", slog.String("environment", cfg.Environment))

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(connCtx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgresql")

	if err := postgres.Migrate(connCtx, db); err != nil {
		slog.Error("schema migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var events service.EventPublisher = messaging.NoopPublisher{}
	var broker handler.BrokerStatus
	if cfg.EventsEnabled() {
		rmqCtx, rmqCancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer rmqCancel()

		rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
		if err != nil {
			slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rmq.Close()
		events = rmq
		broker = rmq
		slog.Info("message events enabled", slog.String("exchange", messaging.EventsExchange))
	} else {
		slog.Info("RABBITMQ_URL not set, message events disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub()
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("hub error", slog.String("error", err.Error()))
		}
	}()

	store := storage.NewAttachmentStore(cfg.AttachmentDir)
	chatService := service.NewChatService(
		postgres.NewChatroomRepository(db),
		postgres.NewUserRepository(db),
		postgres.NewMessageRepository(db),
		store,
		hub,
		events,
	)

	hydrateCtx, hydrateCancel := context.WithTimeout(ctx, 10*time.Second)
	rooms, err := chatService.HydrateRegistry(hydrateCtx)
	hydrateCancel()
	if err != nil {
		slog.Error("failed to hydrate room registry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("room registry hydrated", slog.Int("rooms", rooms))

	go recordDBStats(ctx, db)

	r := newRouter(ctx, routerDeps{
		cfg:         cfg,
		db:          db,
		broker:      broker,
		hub:         hub,
		chatService: chatService,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("chat server listening",
			slog.String("port", cfg.Port),
			slog.String("attachment_dir", store.Dir()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Shutdown does not wait for hijacked connections; cancelling ctx closes them via the hub
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	<-hubDone

	slog.Info("server stopped gracefully")
}

// recordDBStats publishes connection pool gauges until ctx is done
func recordDBStats(ctx context.Context, db *sql.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.RecordDBStats(db.Stats())
		}
	}
}
