package suppliers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Repository persists suppliers. The balance column on the same row is owned by
// the ledger recalculator; this repository only reads it.
type Repository interface {
	Insert(ctx context.Context, q db.Querier, s *Supplier) error
	Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Supplier, error)
	List(ctx context.Context, q db.Querier, ownerID int64, search string, page shared.Page) ([]Supplier, error)
	Update(ctx context.Context, q db.Querier, s *Supplier) error
	SetLifecycle(ctx context.Context, q db.Querier, ownerID, id int64, state Lifecycle) error
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

const supplierColumns = `id, owner_id, name, phone, email, address, gstin, balance, state, created_at, updated_at`

func scanSupplier(row pgx.Row) (*Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Phone, &s.Email, &s.Address,
		&s.GSTIN, &s.Balance, &s.State, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("suppliers: scan supplier: %w", err)
	}
	return &s, nil
}

func (r *pgRepository) Insert(ctx context.Context, q db.Querier, s *Supplier) error {
	err := r.querier(q).QueryRow(ctx, `INSERT INTO suppliers
		(owner_id, name, phone, email, address, gstin, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		s.OwnerID, s.Name, s.Phone, s.Email, s.Address, s.GSTIN, s.State).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("suppliers: insert supplier: %w", err)
	}
	return nil
}

func (r *pgRepository) Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Supplier, error) {
	return scanSupplier(r.querier(q).QueryRow(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE id = $1 AND owner_id = $2`, id, ownerID))
}

func (r *pgRepository) List(ctx context.Context, q db.Querier, ownerID int64, search string, page shared.Page) ([]Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers
		WHERE owner_id = $1 AND state <> 'Deleted'`
	args := []any{ownerID}
	if search != "" {
		query += ` AND (name ILIKE $2 OR phone ILIKE $2)`
		args = append(args, "%"+search+"%")
	}
	query += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Skip)

	rows, err := r.querier(q).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("suppliers: list suppliers: %w", err)
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *pgRepository) Update(ctx context.Context, q db.Querier, s *Supplier) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE suppliers
		SET name = $1, phone = $2, email = $3, address = $4, gstin = $5, updated_at = now()
		WHERE id = $6 AND owner_id = $7`,
		s.Name, s.Phone, s.Email, s.Address, s.GSTIN, s.ID, s.OwnerID)
	if err != nil {
		return fmt.Errorf("suppliers: update supplier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetLifecycle(ctx context.Context, q db.Querier, ownerID, id int64, state Lifecycle) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE suppliers SET state = $1, updated_at = now()
		WHERE id = $2 AND owner_id = $3`, state, id, ownerID)
	if err != nil {
		return fmt.Errorf("suppliers: set lifecycle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
