package db

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeStore struct {
	beginErr error
	txs      []*fakeTx
}

func (s *fakeStore) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *fakeStore) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (s *fakeStore) Begin(ctx context.Context) (Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	tx := &fakeTx{}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func newTestManager(store Store) *Manager {
	m := NewManager(store, slog.Default())
	m.backoff = func(ctx context.Context, attempt int) error { return nil }
	return m
}

func TestRunCommitsOnSuccess(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	calls := 0
	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		calls++
		require.NotNil(t, q)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Len(t, store.txs, 2) // capability probe + the real attempt
	require.True(t, store.txs[0].rolledBack)
	require.True(t, store.txs[1].committed)
}

func TestRunFallsBackWhenTransactionsUnsupported(t *testing.T) {
	store := &fakeStore{beginErr: ErrTxUnsupported}
	m := newTestManager(store)

	calls := 0
	var received Querier
	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		calls++
		received = q
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls, "fallback must invoke the action exactly once")
	require.Same(t, Querier(store), received, "fallback hands the plain store to the action")
}

func TestRunFallbackReturnsActionError(t *testing.T) {
	store := &fakeStore{beginErr: ErrTxUnsupported}
	m := newTestManager(store)

	calls := 0
	wantErr := errors.New("boom")
	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		calls++
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, calls, "capability errors must not loop")
}

func TestRunRetriesTransientError(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	transient := &pgconn.PgError{Code: "40001"}
	calls := 0
	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		calls++
		if calls == 1 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls, "one transient failure then success means exactly two invocations")
	require.True(t, store.txs[1].rolledBack, "failed attempt must be rolled back")
	require.True(t, store.txs[2].committed)
}

func TestRunStopsAfterRetryBudget(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	transient := &pgconn.PgError{Code: "40P01"}
	calls := 0
	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		calls++
		return transient
	}, RunOptions{MaxRetries: 2, Timeout: time.Second})
	require.Error(t, err)
	require.ErrorAs(t, err, new(*pgconn.PgError))
	require.Equal(t, 3, calls)
}

func TestRunDoesNotRetryFatalError(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	fatal := errors.New("validation failed")
	calls := 0
	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		calls++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	require.Equal(t, 1, calls)
}

func TestRunTimesOutSlowAction(t *testing.T) {
	store := &fakeStore{}
	m := newTestManager(store)

	calls := 0
	err := m.Run(context.Background(), func(ctx context.Context, q Querier) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	}, RunOptions{Timeout: 20 * time.Millisecond, MaxRetries: 1})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 2, calls, "timeouts are transient and consume the retry budget")
}

func TestProbeCapabilities(t *testing.T) {
	supported := ProbeCapabilities(context.Background(), &fakeStore{})
	require.True(t, supported.Transactions)

	unsupported := ProbeCapabilities(context.Background(), &fakeStore{beginErr: ErrTxUnsupported})
	require.False(t, unsupported.Transactions)
}

func TestIsTransient(t *testing.T) {
	require.True(t, IsTransient(&pgconn.PgError{Code: "40001"}))
	require.True(t, IsTransient(&pgconn.PgError{Code: "08006"}))
	require.True(t, IsTransient(context.DeadlineExceeded))
	require.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsTransient(errors.New("bad input")))
	require.False(t, IsTransient(nil))
}
