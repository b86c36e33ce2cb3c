package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"
	"github.com/Hamxay/-WhatsApp-API-server/internal/service"
	ws "github.com/Hamxay/-WhatsApp-API-server/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// WebSocketHandler upgrades room connections and hands them to the hub
type WebSocketHandler struct {
	hub               *ws.Hub
	chatService       *service.ChatService
	upgrader          websocket.Upgrader
	maxAttachmentSize int64
}

// NewWebSocketHandler creates a new WebSocket handler. Browser origins are checked
// against allowedOrigins; "*" allows any origin.
func NewWebSocketHandler(hub *ws.Hub, chatService *service.ChatService, allowedOrigins []string, maxAttachmentSize int64) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		chatService: chatService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		maxAttachmentSize: maxAttachmentSize,
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients do not send an Origin header
			return true
		}
		return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
	}
}

// HandleConnection validates the room and user, upgrades, and serves the connection
// until it closes
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	chatroomID := chi.URLParam(r, "chatroom_id")
	user := chi.URLParam(r, "user")

	if err := h.chatService.CheckParticipant(r.Context(), chatroomID, user); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.FromContext(r.Context()).Warn("websocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("chatroom_id", chatroomID))
		return
	}

	// Keep request-scoped log fields, drop the request's cancellation
	ctx := context.WithoutCancel(r.Context())
	ws.NewClient(ctx, h.hub, conn, user, chatroomID, h.chatService, h.maxAttachmentSize).Serve()
}
