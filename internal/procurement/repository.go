package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Repository persists purchases. Methods accept a db.Querier for unit-of-work
// threading; nil falls back to the pool.
type Repository interface {
	Insert(ctx context.Context, q db.Querier, p *Purchase) error
	Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Purchase, error)
	ListBySupplier(ctx context.Context, q db.Querier, ownerID, supplierID int64, page shared.Page) ([]Purchase, error)
	ListByDate(ctx context.Context, q db.Querier, ownerID int64, day time.Time) ([]Purchase, error)
	AddReturned(ctx context.Context, q db.Querier, ownerID, id int64, amount float64) error
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

const purchaseColumns = `id, owner_id, supplier_id, bill_no, purchase_date, amount, returned_amount, note, created_at, updated_at`

func scanPurchase(row pgx.Row) (*Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.OwnerID, &p.SupplierID, &p.BillNo, &p.Date,
		&p.Amount, &p.ReturnedAmount, &p.Note, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("procurement: scan purchase: %w", err)
	}
	return &p, nil
}

func (r *pgRepository) Insert(ctx context.Context, q db.Querier, p *Purchase) error {
	qr := r.querier(q)
	err := qr.QueryRow(ctx, `INSERT INTO purchases
		(owner_id, supplier_id, bill_no, purchase_date, amount, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		p.OwnerID, p.SupplierID, p.BillNo, p.Date, p.Amount, p.Note).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("procurement: insert purchase: %w", err)
	}
	for i := range p.Items {
		item := &p.Items[i]
		item.PurchaseID = p.ID
		err := qr.QueryRow(ctx, `INSERT INTO purchase_items
			(purchase_id, product_id, quantity, unit_cost)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			p.ID, item.ProductID, item.Quantity, item.UnitCost).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("procurement: insert purchase item: %w", err)
		}
	}
	return nil
}

func (r *pgRepository) Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Purchase, error) {
	qr := r.querier(q)
	p, err := scanPurchase(qr.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return nil, err
	}
	rows, err := qr.Query(ctx, `SELECT id, purchase_id, product_id, quantity, unit_cost
		FROM purchase_items WHERE purchase_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("procurement: list purchase items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item PurchaseItem
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductID, &item.Quantity, &item.UnitCost); err != nil {
			return nil, fmt.Errorf("procurement: scan purchase item: %w", err)
		}
		p.Items = append(p.Items, item)
	}
	return p, rows.Err()
}

func (r *pgRepository) ListBySupplier(ctx context.Context, q db.Querier, ownerID, supplierID int64, page shared.Page) ([]Purchase, error) {
	rows, err := r.querier(q).Query(ctx, `SELECT `+purchaseColumns+` FROM purchases
		WHERE owner_id = $1 AND supplier_id = $2
		ORDER BY purchase_date DESC, id DESC LIMIT $3 OFFSET $4`,
		ownerID, supplierID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("procurement: list by supplier: %w", err)
	}
	return collectPurchases(rows)
}

func (r *pgRepository) ListByDate(ctx context.Context, q db.Querier, ownerID int64, day time.Time) ([]Purchase, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	rows, err := r.querier(q).Query(ctx, `SELECT `+purchaseColumns+` FROM purchases
		WHERE owner_id = $1 AND purchase_date >= $2 AND purchase_date < $3
		ORDER BY purchase_date, id`, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("procurement: list by date: %w", err)
	}
	return collectPurchases(rows)
}

func collectPurchases(rows pgx.Rows) ([]Purchase, error) {
	defer rows.Close()
	var out []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// AddReturned bumps the returned total; the guard keeps it within the bill.
func (r *pgRepository) AddReturned(ctx context.Context, q db.Querier, ownerID, id int64, amount float64) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE purchases
		SET returned_amount = returned_amount + $1, updated_at = now()
		WHERE id = $2 AND owner_id = $3 AND returned_amount + $1 <= amount + 0.01`,
		amount, id, ownerID)
	if err != nil {
		return fmt.Errorf("procurement: add returned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.Validationf("return exceeds purchase amount")
	}
	return nil
}
