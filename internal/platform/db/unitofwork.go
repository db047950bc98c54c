package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Default unit-of-work tuning. A standalone low-cost deployment may not support
// transactions at all; Manager degrades to best-effort sequential execution there.
const (
	DefaultActionTimeout = 30 * time.Second
	DefaultMaxRetries    = 2

	backoffBase = time.Second
	backoffCap  = 5 * time.Second
)

// ErrTxUnsupported reports that the backing store cannot open transactions.
// Store implementations return it from Begin when the topology lacks support.
var ErrTxUnsupported = errors.New("platform/db: transactions not supported by store")

// Each attempt moves NotStarted -> Active -> Committed or Aborted; an aborted
// attempt may start a fresh cycle on retry.

// Capabilities describes what the backing store can do. Probed once and cached
// instead of matching vendor error strings at failure time.
type Capabilities struct {
	Transactions bool
}

// ProbeCapabilities opens and immediately rolls back a transaction to learn
// whether the deployment supports them.
func ProbeCapabilities(ctx context.Context, store Store) Capabilities {
	tx, err := store.Begin(ctx)
	if err != nil {
		return Capabilities{Transactions: false}
	}
	_ = tx.Rollback(ctx)
	return Capabilities{Transactions: true}
}

// Action is one business operation. It must thread the received Querier through
// every read and write it performs; the wrapper cannot retroactively make
// unthreaded writes atomic. In fallback mode the Querier is the plain store.
type Action func(ctx context.Context, q Querier) error

// RunOptions tunes a single Run call.
type RunOptions struct {
	Timeout    time.Duration
	MaxRetries int
}

// Manager executes actions atomically when the store supports transactions and
// degrades to a single non-transactional invocation when it does not.
type Manager struct {
	store  Store
	logger *slog.Logger

	timeout    time.Duration
	maxRetries int

	probeOnce sync.Once
	capsMu    sync.RWMutex
	caps      Capabilities
	probed    bool

	backoff func(ctx context.Context, attempt int) error
}

// NewManager constructs a Manager with default tuning.
func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:      store,
		logger:     logger,
		timeout:    DefaultActionTimeout,
		maxRetries: DefaultMaxRetries,
		backoff:    sleepBackoff,
	}
}

// WithDefaults overrides the manager-wide timeout and retry budget.
func (m *Manager) WithDefaults(timeout time.Duration, maxRetries int) *Manager {
	if timeout > 0 {
		m.timeout = timeout
	}
	if maxRetries >= 0 {
		m.maxRetries = maxRetries
	}
	return m
}

// SetCapabilities seeds the cached probe result, typically from startup.
func (m *Manager) SetCapabilities(caps Capabilities) {
	m.capsMu.Lock()
	m.caps = caps
	m.probed = true
	m.capsMu.Unlock()
}

func (m *Manager) capabilities(ctx context.Context) Capabilities {
	m.capsMu.RLock()
	if m.probed {
		caps := m.caps
		m.capsMu.RUnlock()
		return caps
	}
	m.capsMu.RUnlock()

	m.probeOnce.Do(func() {
		caps := ProbeCapabilities(ctx, m.store)
		m.SetCapabilities(caps)
		if m.logger != nil && !caps.Transactions {
			m.logger.Warn("store does not support transactions, unit of work degrades to best-effort")
		}
	})

	m.capsMu.RLock()
	defer m.capsMu.RUnlock()
	return m.caps
}

// Run executes action as a unit of work. Transient failures (serialization
// conflicts, deadlocks, connection drops, action timeouts) are retried with
// exponential backoff; validation and authorization errors propagate untouched.
func (m *Manager) Run(ctx context.Context, action Action, opts ...RunOptions) error {
	timeout := m.timeout
	maxRetries := m.maxRetries
	if len(opts) > 0 {
		if opts[0].Timeout > 0 {
			timeout = opts[0].Timeout
		}
		if opts[0].MaxRetries >= 0 {
			maxRetries = opts[0].MaxRetries
		}
	}

	if !m.capabilities(ctx).Transactions {
		// Capability is a property of the deployment, not of this attempt:
		// retrying cannot change it, so the action runs exactly once.
		return m.runDirect(ctx, action, timeout)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.backoff(ctx, attempt); err != nil {
				return err
			}
			if m.logger != nil {
				m.logger.Info("retrying unit of work",
					slog.Int("attempt", attempt+1),
					slog.Int("max_attempts", maxRetries+1))
			}
		}

		err := m.runOnce(ctx, action, timeout)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrTxUnsupported) {
			// The probe was stale (e.g. topology changed underneath us).
			m.SetCapabilities(Capabilities{Transactions: false})
			return m.runDirect(ctx, action, timeout)
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("platform/db: unit of work failed after %d attempts: %w", maxRetries+1, lastErr)
}

// runOnce drives a single attempt. The transaction handle never escapes this
// call and is released on every exit path.
func (m *Manager) runOnce(ctx context.Context, action Action, timeout time.Duration) error {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return err
	}

	actionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- action(actionCtx, tx)
	}()

	select {
	case err := <-done:
		if err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	case <-actionCtx.Done():
		// Cancelling actionCtx aborts in-flight queries; the rollback below
		// releases the handle even if the action goroutine is still draining.
		_ = tx.Rollback(ctx)
		if errors.Is(actionCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("platform/db: unit of work timed out after %s: %w", timeout, actionCtx.Err())
		}
		return actionCtx.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("platform/db: commit: %w", err)
	}
	return nil
}

// runDirect is the non-transactional fallback. Partial effects on failure are
// an accepted, documented risk of this mode.
func (m *Manager) runDirect(ctx context.Context, action Action, timeout time.Duration) error {
	actionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return action(actionCtx, m.store)
}

func sleepBackoff(ctx context.Context, attempt int) error {
	delay := backoffBase << (attempt - 1)
	if delay > backoffCap {
		delay = backoffCap
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Transient PostgreSQL SQLSTATE classes: serialization failures, deadlocks and
// connection-level interruptions are safe to retry once rolled back.
var transientPgCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure
	"57P03": {}, // cannot_connect_now
}

// IsTransient reports whether err is worth a retry on a fresh transaction.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := transientPgCodes[pgErr.Code]
		return ok
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
