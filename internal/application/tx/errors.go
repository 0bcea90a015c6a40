package tx

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrConcurrentModification is the optimistic-lock conflict: the entity's
	// persisted version no longer matches the version the caller loaded. It
	// is a business race, never retried here; the caller must reload.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrRetriesExhausted wraps the last error after the retry budget is spent
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// retryable tags an error as transient infrastructure failure
type retryable struct {
	err error
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

// MarkRetryable tags an error so Execute will retry it
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryable{err: err}
}

// IsRetryable reports whether an error is a transient infrastructure
// failure worth retrying: lock/busy conflicts at the store, broken
// connections, attempt timeouts, or errors explicitly tagged with
// MarkRetryable. Optimistic-lock conflicts are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConcurrentModification) {
		return false
	}

	var tagged *retryable
	if errors.As(err, &tagged) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}

// CompensationOutcome records one compensation attempt during saga rollback
type CompensationOutcome struct {
	Step string
	Err  error
}

// SagaError reports a failed saga: which step failed, the original cause,
// and the outcome of every compensation that ran
type SagaError struct {
	Step          string
	Cause         error
	Compensations []CompensationOutcome
}

// Error implements the error interface
func (e *SagaError) Error() string {
	failed := 0
	for _, c := range e.Compensations {
		if c.Err != nil {
			failed++
		}
	}
	return fmt.Sprintf("saga failed at step %q: %v (compensations: %d run, %d failed)",
		e.Step, e.Cause, len(e.Compensations), failed)
}

// Unwrap exposes the original step error
func (e *SagaError) Unwrap() error { return e.Cause }
