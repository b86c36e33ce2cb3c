package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
)

// UserRepository stores registered usernames. Users carry no profile data; the
// username is the identity used in every route.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const insertUser = `
	INSERT INTO users (username)
	VALUES ($1)
	RETURNING id, created_at`

// Create registers user.Username, filling in ID and CreatedAt
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	defer observeQuery("insert", "users", time.Now())

	if err := r.db.QueryRowContext(ctx, insertUser, user.Username).Scan(&user.ID, &user.CreatedAt); err != nil {
		if IsUniqueViolation(err, "users_username_key") {
			return domain.ErrUsernameExists
		}
		return fmt.Errorf("create user %q: %w", user.Username, err)
	}
	return nil
}

func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	defer observeQuery("select", "users", time.Now())

	var found bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("look up user %q: %w", username, err)
	}
	return found, nil
}
