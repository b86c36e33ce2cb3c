package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInput = errors.New("invalid input")

// MessageKind tells whether Content holds a text body or an attachment filename.
type MessageKind string

const (
	MessageKindText       MessageKind = "text"
	MessageKindAttachment MessageKind = "attachment"
)

// Valid reports whether k is a known kind.
func (k MessageKind) Valid() bool {
	return k == MessageKindText || k == MessageKindAttachment
}

// Message represents a persisted chat message
type Message struct {
	ID         int64       `json:"id"`
	ChatroomID string      `json:"chatroom_id"`
	Author     string      `json:"user"`
	Content    string      `json:"content"`
	Kind       MessageKind `json:"type"`
	CreatedAt  time.Time   `json:"created_at"`
}

// DisplayText is the notification pushed to room participants for this message.
func (m *Message) DisplayText() string {
	if m.Kind == MessageKindAttachment {
		return fmt.Sprintf("%s sent an attachment: %s", m.Author, m.Content)
	}
	return fmt.Sprintf("%s: %s", m.Author, m.Content)
}

// MessageRepository defines the interface for message data access
type MessageRepository interface {
	Create(ctx context.Context, message *Message) error
	// GetByChatroom returns every message of a room, oldest first.
	GetByChatroom(ctx context.Context, chatroomID string) ([]*Message, error)
}
