package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the query surface shared by pgxpool.Pool and pgx.Tx. Repositories
// accept a Querier so the same code runs inside or outside a transaction; a nil
// Querier means "use the pool directly".
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Tx is the subset of pgx.Tx the unit of work manages.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store begins transactions and doubles as the non-transactional fallback
// executor when the deployment has no transaction support.
type Store interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
}

// PoolStore adapts a pgxpool.Pool to the Store interface.
type PoolStore struct {
	*pgxpool.Pool
}

// NewPoolStore wraps a pool.
func NewPoolStore(pool *pgxpool.Pool) PoolStore {
	return PoolStore{Pool: pool}
}

// Begin starts a transaction on the pool.
func (s PoolStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return tx, nil
}
