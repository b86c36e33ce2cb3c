package testutil

import (
	"database/sql/driver"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
)

var idCounter atomic.Int64

// MessageColumns is the column order the postgres message repository selects
var MessageColumns = []string{"id", "chatroom_id", "author", "content", "kind", "created_at"}

// NewTestChatroom returns a room with a unique ID
func NewTestChatroom() *domain.Chatroom {
	return &domain.Chatroom{
		ID:        fmt.Sprintf("room-%d", idCounter.Add(1)),
		CreatedAt: time.Now(),
	}
}

type MessageOption func(*domain.Message)

// NewTestMessage builds a stored text message from alice in room-1 with a unique ID
func NewTestMessage(opts ...MessageOption) *domain.Message {
	msg := &domain.Message{
		ID:         idCounter.Add(1),
		ChatroomID: "room-1",
		Author:     "alice",
		Content:    "hello",
		Kind:       domain.MessageKindText,
		CreatedAt:  time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(msg)
	}
	return msg
}

func InRoom(chatroomID string) MessageOption {
	return func(m *domain.Message) { m.ChatroomID = chatroomID }
}

func From(author string) MessageOption {
	return func(m *domain.Message) { m.Author = author }
}

func WithContent(content string) MessageOption {
	return func(m *domain.Message) { m.Content = content }
}

// WithAttachment turns the message into an attachment named filename
func WithAttachment(filename string) MessageOption {
	return func(m *domain.Message) {
		m.Kind = domain.MessageKindAttachment
		m.Content = filename
	}
}

func CreatedAt(t time.Time) MessageOption {
	return func(m *domain.Message) { m.CreatedAt = t }
}

// NewTestMessages creates count text messages in a room, one minute apart, oldest first
func NewTestMessages(chatroomID string, count int) []*domain.Message {
	base := time.Now().UTC().Add(-time.Duration(count) * time.Minute)
	messages := make([]*domain.Message, count)
	for i := range messages {
		messages[i] = NewTestMessage(
			InRoom(chatroomID),
			WithContent(fmt.Sprintf("message %d", i+1)),
			CreatedAt(base.Add(time.Duration(i)*time.Minute)),
		)
	}
	return messages
}

// MessageRows renders messages as sqlmock rows in MessageColumns order
func MessageRows(messages ...*domain.Message) *sqlmock.Rows {
	rows := sqlmock.NewRows(MessageColumns)
	for _, m := range messages {
		rows.AddRow([]driver.Value{m.ID, m.ChatroomID, m.Author, m.Content, string(m.Kind), m.CreatedAt}...)
	}
	return rows
}
