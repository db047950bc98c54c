package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Repository persists customers. The balance column on the same row is owned by
// the ledger recalculator; this repository only reads it.
type Repository interface {
	Insert(ctx context.Context, q db.Querier, c *Customer) error
	Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Customer, error)
	List(ctx context.Context, q db.Querier, ownerID int64, search string, page shared.Page) ([]Customer, error)
	Update(ctx context.Context, q db.Querier, c *Customer) error
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

const customerColumns = `id, owner_id, name, phone, email, address, gstin, balance, state, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Phone, &c.Email, &c.Address,
		&c.GSTIN, &c.Balance, &c.State, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("customers: scan customer: %w", err)
	}
	return &c, nil
}

func (r *pgRepository) Insert(ctx context.Context, q db.Querier, c *Customer) error {
	err := r.querier(q).QueryRow(ctx, `INSERT INTO customers
		(owner_id, name, phone, email, address, gstin, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		c.OwnerID, c.Name, c.Phone, c.Email, c.Address, c.GSTIN, c.State).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("customers: insert customer: %w", err)
	}
	return nil
}

func (r *pgRepository) Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Customer, error) {
	return scanCustomer(r.querier(q).QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND owner_id = $2`, id, ownerID))
}

func (r *pgRepository) List(ctx context.Context, q db.Querier, ownerID int64, search string, page shared.Page) ([]Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers
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
		return nil, fmt.Errorf("customers: list customers: %w", err)
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *pgRepository) Update(ctx context.Context, q db.Querier, c *Customer) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE customers
		SET name = $1, phone = $2, email = $3, address = $4, gstin = $5, updated_at = now()
		WHERE id = $6 AND owner_id = $7`,
		c.Name, c.Phone, c.Email, c.Address, c.GSTIN, c.ID, c.OwnerID)
	if err != nil {
		return fmt.Errorf("customers: update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetLifecycle(ctx context.Context, q db.Querier, ownerID, id int64, state Lifecycle) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE customers SET state = $1, updated_at = now()
		WHERE id = $2 AND owner_id = $3`, state, id, ownerID)
	if err != nil {
		return fmt.Errorf("customers: set lifecycle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
