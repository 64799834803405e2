package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"

	"wager-exchange/internal/engineerr"
)

// serialization_failure and deadlock_detected — the two SQLSTATEs a
// SERIALIZABLE transaction surfaces on write-skew conflict.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// WithRetry runs fn inside a fresh transaction, retrying up to limit times
// on a serialization failure or deadlock with fresh reads each attempt (the
// bounded-retry-then-CONFLICT discipline required of the Store contract).
func (s *Store) WithRetry(ctx context.Context, limit int, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= limit; attempt++ {
		tx, err := s.BeginTx(ctx)
		if err != nil {
			return engineerr.Internal("begin transaction", err)
		}
		err = fn(tx)
		if err == nil {
			if cerr := tx.Commit(); cerr == nil {
				return nil
			} else if isRetryable(cerr) {
				lastErr = cerr
				continue
			} else {
				return engineerr.Internal("commit transaction", cerr)
			}
		}
		_ = tx.Rollback()
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	return engineerr.Wrap(engineerr.KindConflict, "store retries exhausted", pkgerrors.WithStack(lastErr))
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected
	}
	return strings.Contains(err.Error(), "could not serialize access")
}
