package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS chatrooms (
		id TEXT PRIMARY KEY CHECK (length(id) >= 1),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL CONSTRAINT users_username_key UNIQUE CHECK (length(username) >= 1),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chatroom_members (
		chatroom_id TEXT NOT NULL REFERENCES chatrooms(id) ON DELETE CASCADE,
		username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		joined_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL,
		PRIMARY KEY (chatroom_id, username)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		chatroom_id TEXT NOT NULL REFERENCES chatrooms(id) ON DELETE CASCADE,
		author TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		content TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('text', 'attachment')),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chatroom_id ON messages (chatroom_id, id)`,
}

// migrationLockKey serializes Migrate across server instances sharing a database
const migrationLockKey = 727_001

// Migrate creates the chat schema if it does not exist yet
func Migrate(ctx context.Context, db *sql.DB) error {
	return NewTxManager(db).WithTx(ctx, "migrate", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration step %d failed: %w", i+1, err)
			}
		}
		return nil
	})
}
