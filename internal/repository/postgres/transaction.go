package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"
)

// TxManager runs a named unit of work in one transaction and records its duration
// under the "tx" operation of chat_db_query_duration_seconds
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTx commits when fn returns nil and rolls back otherwise
func (tm *TxManager) WithTx(ctx context.Context, name string, fn func(*sql.Tx) error) error {
	start := time.Now()
	defer observeQuery("tx", name, start)

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", name, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			observability.FromContext(ctx).Error("transaction rollback failed",
				slog.String("tx", name),
				slog.String("error", rbErr.Error()))
			return errors.Join(err, fmt.Errorf("%s: rollback: %w", name, rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit transaction: %w", name, err)
	}
	return nil
}
