package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Repository persists payments. Methods accept a db.Querier for unit-of-work
// threading; nil falls back to the pool.
type Repository interface {
	Insert(ctx context.Context, q db.Querier, p *Payment) error
	Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Payment, error)
	ListByParty(ctx context.Context, q db.Querier, ownerID int64, kind ledger.PartyKind, partyID int64) ([]Payment, error)
	ListByDate(ctx context.Context, q db.Querier, ownerID int64, day time.Time) ([]Payment, error)
	MarkReversed(ctx context.Context, q db.Querier, ownerID, id int64) error
}

type pgRepository struct {
	store db.Store
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(store db.Store) Repository {
	return &pgRepository{store: store}
}

func (r *pgRepository) querier(q db.Querier) db.Querier {
	if q != nil {
		return q
	}
	return r.store
}

const paymentColumns = `id, owner_id, party_kind, party_id, invoice_id, reference, payment_date, amount, method, note, reversed, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OwnerID, &p.Kind, &p.PartyID, &p.InvoiceID, &p.Reference,
		&p.Date, &p.Amount, &p.Method, &p.Note, &p.Reversed, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("payments: scan payment: %w", err)
	}
	return &p, nil
}

func (r *pgRepository) Insert(ctx context.Context, q db.Querier, p *Payment) error {
	err := r.querier(q).QueryRow(ctx, `INSERT INTO payments
		(owner_id, party_kind, party_id, invoice_id, reference, payment_date, amount, method, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		p.OwnerID, p.Kind, p.PartyID, p.InvoiceID, p.Reference, p.Date, p.Amount, p.Method, p.Note).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("payment reference %q already recorded: %w", p.Reference, shared.ErrDuplicate)
		}
		return fmt.Errorf("payments: insert payment: %w", err)
	}
	return nil
}

func (r *pgRepository) Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Payment, error) {
	return scanPayment(r.querier(q).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 AND owner_id = $2`, id, ownerID))
}

func (r *pgRepository) ListByParty(ctx context.Context, q db.Querier, ownerID int64, kind ledger.PartyKind, partyID int64) ([]Payment, error) {
	rows, err := r.querier(q).Query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE owner_id = $1 AND party_kind = $2 AND party_id = $3
		ORDER BY payment_date DESC, id DESC`, ownerID, kind, partyID)
	if err != nil {
		return nil, fmt.Errorf("payments: list by party: %w", err)
	}
	return collectPayments(rows)
}

func (r *pgRepository) ListByDate(ctx context.Context, q db.Querier, ownerID int64, day time.Time) ([]Payment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	rows, err := r.querier(q).Query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE owner_id = $1 AND payment_date >= $2 AND payment_date < $3
		ORDER BY payment_date, id`, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("payments: list by date: %w", err)
	}
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]Payment, error) {
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *pgRepository) MarkReversed(ctx context.Context, q db.Querier, ownerID, id int64) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE payments SET reversed = true, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND NOT reversed`, id, ownerID)
	if err != nil {
		return fmt.Errorf("payments: mark reversed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
