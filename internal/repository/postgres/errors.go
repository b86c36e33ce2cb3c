package postgres

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqCode(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil, false
	}
	return pqErr, true
}

// IsUniqueViolation reports a PostgreSQL unique violation. An empty constraint matches
// any unique constraint.
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := pqCode(err)
	if !ok || string(pqErr.Code) != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// missingReference turns a foreign key violation on a chatroom or user column into the
// matching NotFound error. Other errors are returned wrapped with op.
func missingReference(op string, err error) error {
	pqErr, ok := pqCode(err)
	if ok && string(pqErr.Code) == pqForeignKeyViolation {
		switch {
		case strings.HasSuffix(pqErr.Constraint, "_chatroom_id_fkey"):
			return domain.ErrChatroomNotFound
		case strings.HasSuffix(pqErr.Constraint, "_author_fkey"),
			strings.HasSuffix(pqErr.Constraint, "_username_fkey"):
			return domain.ErrUserNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// observeQuery records the latency of a query started at start
func observeQuery(operation, table string, start time.Time) {
	observability.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
