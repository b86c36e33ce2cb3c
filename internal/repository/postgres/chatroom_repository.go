package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
)

// ChatroomRepository implements domain.ChatroomRepository for PostgreSQL
type ChatroomRepository struct {
	db *sql.DB
}

// NewChatroomRepository creates a new PostgreSQL chatroom repository
func NewChatroomRepository(db *sql.DB) *ChatroomRepository {
	return &ChatroomRepository{db: db}
}

// Create inserts a new chatroom. A duplicate id yields domain.ErrChatroomExists.
func (r *ChatroomRepository) Create(ctx context.Context, chatroom *domain.Chatroom) error {
	defer observeQuery("insert", "chatrooms", time.Now())

	query := `
		INSERT INTO chatrooms (id)
		VALUES ($1)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, chatroom.ID).Scan(&chatroom.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err, "chatrooms_pkey") {
			return domain.ErrChatroomExists
		}
		return fmt.Errorf("failed to create chatroom: %w", err)
	}
	return nil
}

// GetByID retrieves a chatroom by ID
func (r *ChatroomRepository) GetByID(ctx context.Context, id string) (*domain.Chatroom, error) {
	defer observeQuery("select", "chatrooms", time.Now())

	query := `
		SELECT id, created_at
		FROM chatrooms
		WHERE id = $1
	`
	chatroom := &domain.Chatroom{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&chatroom.ID, &chatroom.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrChatroomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chatroom: %w", err)
	}
	return chatroom, nil
}

// List retrieves all chatrooms in creation order
func (r *ChatroomRepository) List(ctx context.Context) ([]*domain.Chatroom, error) {
	defer observeQuery("select", "chatrooms", time.Now())

	query := `
		SELECT id, created_at
		FROM chatrooms
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query chatrooms: %w", err)
	}
	defer rows.Close()

	chatrooms := make([]*domain.Chatroom, 0)
	for rows.Next() {
		chatroom := &domain.Chatroom{}
		if err := rows.Scan(&chatroom.ID, &chatroom.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chatroom: %w", err)
		}
		chatrooms = append(chatrooms, chatroom)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chatrooms: %w", err)
	}
	return chatrooms, nil
}

// AddMember records that a user entered a chatroom. Entering twice is a no-op; an
// unknown room or user yields the matching NotFound error.
func (r *ChatroomRepository) AddMember(ctx context.Context, chatroomID, username string) error {
	defer observeQuery("insert", "chatroom_members", time.Now())

	query := `
		INSERT INTO chatroom_members (chatroom_id, username)
		VALUES ($1, $2)
		ON CONFLICT (chatroom_id, username) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, chatroomID, username); err != nil {
		return missingReference("failed to add member", err)
	}
	return nil
}

// ListMembers returns the usernames that entered a chatroom, in join order
func (r *ChatroomRepository) ListMembers(ctx context.Context, chatroomID string) ([]string, error) {
	defer observeQuery("select", "chatroom_members", time.Now())

	query := `
		SELECT username
		FROM chatroom_members
		WHERE chatroom_id = $1
		ORDER BY joined_at ASC, username ASC
	`
	rows, err := r.db.QueryContext(ctx, query, chatroomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := make([]string, 0)
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, username)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}
