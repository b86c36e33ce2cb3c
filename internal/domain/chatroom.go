package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"
)

// MaxNameLength bounds chatroom IDs and usernames, which both travel as URL path segments
const MaxNameLength = 100

var (
	ErrChatroomNotFound = errors.New("chatroom not found")
	ErrChatroomExists   = errors.New("chatroom already exists")
)

// Chatroom is identified by a caller-chosen ID. Rooms are never deleted.
type Chatroom struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateName checks a chatroom ID or username: 1 to MaxNameLength bytes, no
// control characters and no path separators
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return fmt.Errorf("%w: name must be 1-%d bytes", ErrInvalidInput, MaxNameLength)
	}
	for _, r := range name {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return fmt.Errorf("%w: name contains %q", ErrInvalidInput, r)
		}
	}
	return nil
}

// ChatroomRepository defines the interface for chatroom data access
type ChatroomRepository interface {
	Create(ctx context.Context, chatroom *Chatroom) error
	GetByID(ctx context.Context, id string) (*Chatroom, error)
	// List returns every room in creation order
	List(ctx context.Context) ([]*Chatroom, error)
	AddMember(ctx context.Context, chatroomID, username string) error
	ListMembers(ctx context.Context, chatroomID string) ([]string, error)
}
