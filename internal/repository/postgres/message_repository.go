package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
)

// MessageRepository implements domain.MessageRepository for PostgreSQL
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create appends a message and fills in its ID and timestamp. A message for a room or
// author that does not exist fails with the matching NotFound error.
func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) error {
	if !message.Kind.Valid() {
		return fmt.Errorf("%w: unknown message kind %q", domain.ErrInvalidInput, message.Kind)
	}
	defer observeQuery("insert", "messages", time.Now())

	query := `
		INSERT INTO messages (chatroom_id, author, content, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		message.ChatroomID,
		message.Author,
		message.Content,
		string(message.Kind),
	).Scan(&message.ID, &message.CreatedAt)

	if err != nil {
		return missingReference("failed to create message", err)
	}
	return nil
}

// GetByChatroom retrieves all messages for a chatroom in storage order (oldest first)
func (r *MessageRepository) GetByChatroom(ctx context.Context, chatroomID string) ([]*domain.Message, error) {
	defer observeQuery("select", "messages", time.Now())

	query := `
		SELECT id, chatroom_id, author, content, kind, created_at
		FROM messages
		WHERE chatroom_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, chatroomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		msg := &domain.Message{}
		var kind string
		err := rows.Scan(
			&msg.ID,
			&msg.ChatroomID,
			&msg.Author,
			&msg.Content,
			&kind,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Kind = domain.MessageKind(kind)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}
