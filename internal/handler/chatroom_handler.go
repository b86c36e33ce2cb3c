package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"
	"github.com/Hamxay/-WhatsApp-API-server/internal/service"
	"github.com/Hamxay/-WhatsApp-API-server/internal/storage"

	"github.com/go-chi/chi/v5"
)

// ChatroomHandler handles the request/response chat endpoints
type ChatroomHandler struct {
	chatService       *service.ChatService
	maxAttachmentSize int64
}

// NewChatroomHandler creates a new chatroom handler
func NewChatroomHandler(chatService *service.ChatService, maxAttachmentSize int64) *ChatroomHandler {
	return &ChatroomHandler{
		chatService:       chatService,
		maxAttachmentSize: maxAttachmentSize,
	}
}

// MessageResponse is the acknowledgement body of write endpoints
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors to a status code. Unexpected errors are logged and
// answered with a generic body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrChatroomNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, storage.ErrAttachmentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrChatroomExists), errors.Is(err, domain.ErrUsernameExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": domain.ErrInvalidInput.Error()})
		return
	default:
		observability.FromContext(r.Context()).Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// CreateChatroom creates a room with the ID taken from the path
func (h *ChatroomHandler) CreateChatroom(w http.ResponseWriter, r *http.Request) {
	chatroomID := chi.URLParam(r, "chatroom_id")

	if _, err := h.chatService.CreateChatroom(r.Context(), chatroomID); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{
		Message: fmt.Sprintf("Chatroom %s created successfully!", chatroomID),
	})
}

// CreateUser registers a username
func (h *ChatroomHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, err := h.chatService.CreateUser(r.Context(), name); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{
		Message: fmt.Sprintf("User %s created successfully!", name),
	})
}

// EnterChatroom records that a user entered a room
func (h *ChatroomHandler) EnterChatroom(w http.ResponseWriter, r *http.Request) {
	chatroomID := chi.URLParam(r, "chatroom_id")
	user := chi.URLParam(r, "user")

	if err := h.chatService.EnterChatroom(r.Context(), chatroomID, user); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("%s entered the chatroom %s", user, chatroomID),
	})
}

// SendMessage persists the "message" query parameter and broadcasts it
func (h *ChatroomHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	chatroomID := chi.URLParam(r, "chatroom_id")
	user := chi.URLParam(r, "user")

	query := r.URL.Query()
	if !query.Has("message") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message query parameter required"})
		return
	}

	if _, err := h.chatService.SendText(r.Context(), chatroomID, user, query.Get("message")); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Text message sent successfully"})
}

// SendAttachment stores the multipart "file" field and announces it to the room
func (h *ChatroomHandler) SendAttachment(w http.ResponseWriter, r *http.Request) {
	chatroomID := chi.URLParam(r, "chatroom_id")
	user := chi.URLParam(r, "user")

	// Leave room for multipart headers on top of the payload limit
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAttachmentSize+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "attachment too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxAttachmentSize+1))
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to read upload: %w", err))
		return
	}
	if int64(len(data)) > h.maxAttachmentSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "attachment too large"})
		return
	}

	if _, err := h.chatService.SendAttachment(r.Context(), chatroomID, user, header.Filename, data); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Attachment sent successfully"})
}

// ListChatrooms returns every room ID in creation order
func (h *ChatroomHandler) ListChatrooms(w http.ResponseWriter, r *http.Request) {
	ids, err := h.chatService.ListChatrooms(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ids)
}

// ListMessages returns a room's history, oldest first
func (h *ChatroomHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatService.ListMessages(r.Context(), chi.URLParam(r, "chatroom_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// Participants reports live connections and recorded members of a room
func (h *ChatroomHandler) Participants(w http.ResponseWriter, r *http.Request) {
	presence, err := h.chatService.Presence(r.Context(), chi.URLParam(r, "chatroom_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, presence)
}

// DownloadAttachment streams stored attachment bytes
func (h *ChatroomHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	f, err := h.chatService.OpenAttachment(r.Context(), chi.URLParam(r, "chatroom_id"), filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to stat attachment: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeContent(w, r, filename, info.ModTime(), f)
}
