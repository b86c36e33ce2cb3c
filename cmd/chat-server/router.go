package main

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Hamxay/-WhatsApp-API-server/internal/config"
	"github.com/Hamxay/-WhatsApp-API-server/internal/handler"
	"github.com/Hamxay/-WhatsApp-API-server/internal/middleware"
	"github.com/Hamxay/-WhatsApp-API-server/internal/service"
	"github.com/Hamxay/-WhatsApp-API-server/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routerDeps struct {
	cfg         *config.Config
	db          *sql.DB
	broker      handler.BrokerStatus
	hub         *websocket.Hub
	chatService *service.ChatService
}

// newRouter wires middleware and routes. ctx bounds the rate limiter's cleanup loop.
func newRouter(ctx context.Context, deps routerDeps) http.Handler {
	cfg := deps.cfg
	origins := middleware.ParseOrigins(cfg.AllowedOrigins)

	chatroomHandler := handler.NewChatroomHandler(deps.chatService, cfg.MaxAttachmentBytes)
	wsHandler := handler.NewWebSocketHandler(deps.hub, deps.chatService, origins, cfg.MaxAttachmentBytes)
	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(origins))

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(deps.db, deps.broker, deps.hub))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware())
		r.Use(middleware.OpenAPIValidator(middleware.DefaultOpenAPIValidatorConfig(cfg.OpenAPISpecPath, cfg.IsProduction())))

		r.Post("/create_chatroom/{chatroom_id}", chatroomHandler.CreateChatroom)
		r.Post("/create_user/{name}", chatroomHandler.CreateUser)
		r.Post("/enter_chatroom/{chatroom_id}/{user}", chatroomHandler.EnterChatroom)
		r.Post("/send_message/{chatroom_id}/{user}", chatroomHandler.SendMessage)
		r.Post("/send_attachment/{chatroom_id}/{user}", chatroomHandler.SendAttachment)
		r.Get("/chatrooms", chatroomHandler.ListChatrooms)
		r.Get("/chatrooms/{chatroom_id}/participants", chatroomHandler.Participants)
		r.Get("/list_messages/{chatroom_id}", chatroomHandler.ListMessages)
		r.Get("/download_attachment/{chatroom_id}/{filename}", chatroomHandler.DownloadAttachment)

		r.Get("/ws/{chatroom_id}/{user}", wsHandler.HandleConnection)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})

	return r
}
