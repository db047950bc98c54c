package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Repository persists products. Methods accept a db.Querier for unit-of-work
// threading; nil falls back to the pool.
type Repository interface {
	List(ctx context.Context, q db.Querier, ownerID int64, page shared.Page) ([]Product, error)
	Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Product, error)
	GetMany(ctx context.Context, q db.Querier, ownerID int64, ids []int64) (map[int64]*Product, error)
	Insert(ctx context.Context, q db.Querier, p *Product) error
	Update(ctx context.Context, q db.Querier, p *Product) error
	Delete(ctx context.Context, q db.Querier, ownerID, id int64) error
	AdjustStock(ctx context.Context, q db.Querier, ownerID, id int64, delta float64) error
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

const productColumns = `id, owner_id, name, sku, unit, price, gst_rate, stock, low_stock, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.SKU, &p.Unit, &p.Price, &p.GSTRate,
		&p.Stock, &p.LowStock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("inventory: scan product: %w", err)
	}
	return &p, nil
}

func (r *pgRepository) List(ctx context.Context, q db.Querier, ownerID int64, page shared.Page) ([]Product, error) {
	rows, err := r.querier(q).Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE owner_id = $1 ORDER BY name LIMIT $2 OFFSET $3`, ownerID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("inventory: list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Product, error) {
	return scanProduct(r.querier(q).QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND owner_id = $2`, id, ownerID))
}

func (r *pgRepository) GetMany(ctx context.Context, q db.Querier, ownerID int64, ids []int64) (map[int64]*Product, error) {
	rows, err := r.querier(q).Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE owner_id = $1 AND id = ANY($2)`, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("inventory: get products: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *pgRepository) Insert(ctx context.Context, q db.Querier, p *Product) error {
	err := r.querier(q).QueryRow(ctx, `INSERT INTO products
		(owner_id, name, sku, unit, price, gst_rate, stock, low_stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		p.OwnerID, p.Name, p.SKU, p.Unit, p.Price, p.GSTRate, p.Stock, p.LowStock).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inventory: insert product: %w", err)
	}
	return nil
}

func (r *pgRepository) Update(ctx context.Context, q db.Querier, p *Product) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE products SET
		name = $1, sku = $2, unit = $3, price = $4, gst_rate = $5, stock = $6, low_stock = $7, updated_at = now()
		WHERE id = $8 AND owner_id = $9`,
		p.Name, p.SKU, p.Unit, p.Price, p.GSTRate, p.Stock, p.LowStock, p.ID, p.OwnerID)
	if err != nil {
		return fmt.Errorf("inventory: update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) Delete(ctx context.Context, q db.Querier, ownerID, id int64) error {
	tag, err := r.querier(q).Exec(ctx, `DELETE FROM products WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("inventory: delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) AdjustStock(ctx context.Context, q db.Querier, ownerID, id int64, delta float64) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE products SET stock = stock + $1, updated_at = now()
		WHERE id = $2 AND owner_id = $3`, delta, id, ownerID)
	if err != nil {
		return fmt.Errorf("inventory: adjust stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
