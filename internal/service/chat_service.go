package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"
	"github.com/Hamxay/-WhatsApp-API-server/internal/storage"
)

// RoomRegistry is the live participant registry the service notifies
type RoomRegistry interface {
	EnsureRoom(chatroomID string)
	Hydrate(chatroomIDs []string)
	BroadcastText(chatroomID, text string) int
	ParticipantCount(chatroomID string) int
}

// EventPublisher announces persisted messages to other systems
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, message *domain.Message) error
}

// AttachmentStore keeps attachment bytes addressed by filename
type AttachmentStore interface {
	Put(filename string, data []byte) error
	Open(filename string) (*os.File, error)
}

// Presence describes who is in a room
type Presence struct {
	ChatroomID string   `json:"chatroom_id"`
	Connected  int      `json:"connected"`
	Members    []string `json:"members"`
}

type ChatService struct {
	chatroomRepo domain.ChatroomRepository
	userRepo     domain.UserRepository
	messageRepo  domain.MessageRepository
	store        AttachmentStore
	registry     RoomRegistry
	events       EventPublisher
}

func NewChatService(chatroomRepo domain.ChatroomRepository, userRepo domain.UserRepository,
	messageRepo domain.MessageRepository, store AttachmentStore, registry RoomRegistry,
	events EventPublisher) *ChatService {
	return &ChatService{
		chatroomRepo: chatroomRepo,
		userRepo:     userRepo,
		messageRepo:  messageRepo,
		store:        store,
		registry:     registry,
		events:       events,
	}
}

// HydrateRegistry creates one empty registry entry per persisted room
func (s *ChatService) HydrateRegistry(ctx context.Context) (int, error) {
	chatrooms, err := s.chatroomRepo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load chatrooms: %w", err)
	}

	ids := make([]string, len(chatrooms))
	for i, c := range chatrooms {
		ids[i] = c.ID
	}
	s.registry.Hydrate(ids)
	return len(ids), nil
}

func (s *ChatService) CreateChatroom(ctx context.Context, chatroomID string) (*domain.Chatroom, error) {
	if err := domain.ValidateName(chatroomID); err != nil {
		return nil, err
	}

	chatroom := &domain.Chatroom{ID: chatroomID}
	if err := s.chatroomRepo.Create(ctx, chatroom); err != nil {
		return nil, err
	}

	s.registry.EnsureRoom(chatroomID)
	return chatroom, nil
}

func (s *ChatService) CreateUser(ctx context.Context, username string) (*domain.User, error) {
	if err := domain.ValidateName(username); err != nil {
		return nil, err
	}

	user := &domain.User{Username: username}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CheckParticipant verifies that both the room and the user exist
func (s *ChatService) CheckParticipant(ctx context.Context, chatroomID, username string) error {
	if _, err := s.chatroomRepo.GetByID(ctx, chatroomID); err != nil {
		return err
	}
	exists, err := s.userRepo.Exists(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnterChatroom records membership. It does not make the user a broadcast recipient;
// only a live connection does that.
func (s *ChatService) EnterChatroom(ctx context.Context, chatroomID, username string) error {
	if err := s.CheckParticipant(ctx, chatroomID, username); err != nil {
		return err
	}
	return s.chatroomRepo.AddMember(ctx, chatroomID, username)
}

// SendText persists a text message and notifies the room
func (s *ChatService) SendText(ctx context.Context, chatroomID, username, body string) (*domain.Message, error) {
	if err := s.CheckParticipant(ctx, chatroomID, username); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ChatroomID: chatroomID,
		Author:     username,
		Content:    body,
		Kind:       domain.MessageKindText,
	}
	if err := s.deliver(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// SendAttachment stores data under filename, persists an attachment message and
// notifies the room
func (s *ChatService) SendAttachment(ctx context.Context, chatroomID, username, filename string, data []byte) (*domain.Message, error) {
	if err := storage.ValidateFilename(filename); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if err := s.CheckParticipant(ctx, chatroomID, username); err != nil {
		return nil, err
	}

	if err := s.store.Put(filename, data); err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	msg := &domain.Message{
		ChatroomID: chatroomID,
		Author:     username,
		Content:    filename,
		Kind:       domain.MessageKindAttachment,
	}
	if err := s.deliver(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// deliver persists msg, then broadcasts and publishes it. Only persistence can fail.
func (s *ChatService) deliver(ctx context.Context, msg *domain.Message) error {
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	observability.MessagesPersisted.WithLabelValues(string(msg.Kind)).Inc()

	log := observability.FromContext(observability.WithChatroomID(ctx, msg.ChatroomID))
	delivered := s.registry.BroadcastText(msg.ChatroomID, msg.DisplayText())
	log.Debug("message broadcast",
		slog.Int64("message_id", msg.ID),
		slog.String("kind", string(msg.Kind)),
		slog.Int("delivered", delivered))

	if err := s.events.PublishMessageCreated(ctx, msg); err != nil {
		observability.EventsPublished.WithLabelValues("error").Inc()
		log.Warn("failed to publish message event",
			slog.Int64("message_id", msg.ID),
			slog.String("error", err.Error()))
		return nil
	}
	observability.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

func (s *ChatService) ListChatrooms(ctx context.Context) ([]string, error) {
	chatrooms, err := s.chatroomRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(chatrooms))
	for i, c := range chatrooms {
		ids[i] = c.ID
	}
	return ids, nil
}

// ListMessages returns a room's history, oldest first
func (s *ChatService) ListMessages(ctx context.Context, chatroomID string) ([]*domain.Message, error) {
	if _, err := s.chatroomRepo.GetByID(ctx, chatroomID); err != nil {
		return nil, err
	}
	return s.messageRepo.GetByChatroom(ctx, chatroomID)
}

func (s *ChatService) Presence(ctx context.Context, chatroomID string) (*Presence, error) {
	if _, err := s.chatroomRepo.GetByID(ctx, chatroomID); err != nil {
		return nil, err
	}

	members, err := s.chatroomRepo.ListMembers(ctx, chatroomID)
	if err != nil {
		return nil, err
	}

	return &Presence{
		ChatroomID: chatroomID,
		Connected:  s.registry.ParticipantCount(chatroomID),
		Members:    members,
	}, nil
}

// OpenAttachment opens a stored attachment for download. The caller closes the file.
func (s *ChatService) OpenAttachment(ctx context.Context, chatroomID, filename string) (*os.File, error) {
	if _, err := s.chatroomRepo.GetByID(ctx, chatroomID); err != nil {
		return nil, err
	}

	f, err := s.store.Open(filename)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidFilename) {
			return nil, storage.ErrAttachmentNotFound
		}
		return nil, err
	}
	return f, nil
}
