// Package tx provides the execution strategies the workflow engine relies
// on: retryable atomic units, optimistic-lock-guarded updates, and ordered
// saga compensation.
package tx

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerflow/approval-engine/internal/application/port"
)

// Options tunes one Execute call
type Options struct {
	// MaxRetries is the number of additional attempts after the first
	MaxRetries int
	// Backoff is the initial delay before the first retry; it doubles per
	// attempt up to BackoffMax
	Backoff    time.Duration
	BackoffMax time.Duration
	// Timeout bounds each attempt; zero means no per-attempt deadline
	Timeout time.Duration
}

// DefaultOptions returns the retry policy used when the caller passes the
// zero value
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		Backoff:    50 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		Timeout:    10 * time.Second,
	}
}

// Logger interface for minimal logging dependency
type Logger interface {
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Manager runs functions inside atomic units with a retry policy for
// transient infrastructure errors. Business errors surface immediately.
type Manager struct {
	txm      port.TransactionManager
	logger   Logger
	defaults Options
}

// NewManager creates a transaction manager over the store's transaction
// scoping primitive
func NewManager(txm port.TransactionManager, logger Logger, defaults Options) *Manager {
	if defaults.MaxRetries == 0 && defaults.Backoff == 0 {
		defaults = DefaultOptions()
	}
	return &Manager{txm: txm, logger: logger, defaults: defaults}
}

// Execute runs fn inside a transaction. Retryable errors re-run the whole
// attempt with exponential backoff up to the retry budget; anything else
// surfaces immediately. Partial writes never survive a failed attempt.
func (m *Manager) Execute(ctx context.Context, fn func(ctx context.Context) error, opts Options) error {
	if opts == (Options{}) {
		opts = m.defaults
	}
	if opts.Backoff <= 0 {
		opts.Backoff = m.defaults.Backoff
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = m.defaults.BackoffMax
	}

	backoff := opts.Backoff
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if m.logger != nil {
				m.logger.Warn("Retrying transaction",
					"attempt", attempt,
					"backoff", backoff.String(),
					"error", lastErr,
				)
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > opts.BackoffMax {
				backoff = opts.BackoffMax
			}
		}

		lastErr = m.attempt(ctx, fn, opts.Timeout)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, opts.MaxRetries+1, lastErr)
}

func (m *Manager) attempt(ctx context.Context, fn func(ctx context.Context) error, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return m.txm.WithTransaction(ctx, fn)
}

// ExecuteWithOptimisticLock runs update inside a single non-retried atomic
// unit. The update reports the affected-row count of its conditional write;
// zero rows means another writer won the race and the call fails with
// ErrConcurrentModification. Version conflicts are the caller's problem to
// resolve by reloading, so no retry happens here.
func (m *Manager) ExecuteWithOptimisticLock(ctx context.Context, update func(ctx context.Context) (int64, error)) error {
	return m.Execute(ctx, func(txCtx context.Context) error {
		rows, err := update(txCtx)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrConcurrentModification
		}
		return nil
	}, Options{MaxRetries: 0, Timeout: m.defaults.Timeout, Backoff: m.defaults.Backoff, BackoffMax: m.defaults.BackoffMax})
}
