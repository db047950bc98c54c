package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Repository persists invoices. Methods accept a db.Querier for unit-of-work
// threading; nil falls back to the pool.
type Repository interface {
	Insert(ctx context.Context, q db.Querier, inv *Invoice) error
	Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Invoice, error)
	List(ctx context.Context, q db.Querier, ownerID int64, page shared.Page) ([]Invoice, error)
	ListByDate(ctx context.Context, q db.Querier, ownerID int64, day time.Time) ([]Invoice, error)
	SetLifecycle(ctx context.Context, q db.Querier, ownerID, id int64, lc Lifecycle) error
	SetPayment(ctx context.Context, q db.Querier, ownerID, id int64, paid float64, status PaymentStatus) error
	CountByYear(ctx context.Context, q db.Querier, ownerID int64, year int) (int64, error)
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

const invoiceColumns = `id, owner_id, customer_id, number, invoice_date, gst_inclusive,
	subtotal, discount_total, tax_total, grand_total, paid_amount, status, lifecycle, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OwnerID, &inv.CustomerID, &inv.Number, &inv.Date, &inv.GSTInclusive,
		&inv.Subtotal, &inv.DiscountTotal, &inv.TaxTotal, &inv.GrandTotal, &inv.PaidAmount,
		&inv.Status, &inv.Lifecycle, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("sales: scan invoice: %w", err)
	}
	return &inv, nil
}

func (r *pgRepository) Insert(ctx context.Context, q db.Querier, inv *Invoice) error {
	err := r.querier(q).QueryRow(ctx, `INSERT INTO invoices
		(owner_id, customer_id, number, invoice_date, gst_inclusive,
		 subtotal, discount_total, tax_total, grand_total, paid_amount, status, lifecycle)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`,
		inv.OwnerID, inv.CustomerID, inv.Number, inv.Date, inv.GSTInclusive,
		inv.Subtotal, inv.DiscountTotal, inv.TaxTotal, inv.GrandTotal, inv.PaidAmount,
		inv.Status, inv.Lifecycle).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sales: insert invoice: %w", err)
	}
	for i := range inv.Lines {
		line := &inv.Lines[i]
		line.InvoiceID = inv.ID
		err := r.querier(q).QueryRow(ctx, `INSERT INTO invoice_lines
			(invoice_id, product_id, description, quantity, unit_price, discount_pct, gst_rate,
			 discount_amount, tax_amount, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
			line.InvoiceID, line.ProductID, line.Description, line.Quantity, line.UnitPrice,
			line.DiscountPct, line.GSTRate, line.DiscountAmount, line.TaxAmount, line.LineTotal).
			Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("sales: insert invoice line: %w", err)
		}
	}
	return nil
}

func (r *pgRepository) Get(ctx context.Context, q db.Querier, ownerID, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.querier(q).QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return nil, err
	}

	rows, err := r.querier(q).Query(ctx, `SELECT id, invoice_id, product_id, description, quantity,
		unit_price, discount_pct, gst_rate, discount_amount, tax_amount, line_total
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("sales: invoice lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ProductID, &l.Description, &l.Quantity,
			&l.UnitPrice, &l.DiscountPct, &l.GSTRate, &l.DiscountAmount, &l.TaxAmount, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("sales: scan invoice line: %w", err)
		}
		inv.Lines = append(inv.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *pgRepository) List(ctx context.Context, q db.Querier, ownerID int64, page shared.Page) ([]Invoice, error) {
	rows, err := r.querier(q).Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
		WHERE owner_id = $1 AND lifecycle <> 'Deleted'
		ORDER BY invoice_date DESC, id DESC LIMIT $2 OFFSET $3`, ownerID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("sales: list invoices: %w", err)
	}
	return collectInvoices(rows)
}

func (r *pgRepository) ListByDate(ctx context.Context, q db.Querier, ownerID int64, day time.Time) ([]Invoice, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	rows, err := r.querier(q).Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
		WHERE owner_id = $1 AND lifecycle = 'Active' AND invoice_date >= $2 AND invoice_date < $3
		ORDER BY invoice_date, id`, ownerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("sales: list by date: %w", err)
	}
	return collectInvoices(rows)
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (r *pgRepository) SetLifecycle(ctx context.Context, q db.Querier, ownerID, id int64, lc Lifecycle) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE invoices SET lifecycle = $1, updated_at = now()
		WHERE id = $2 AND owner_id = $3`, lc, id, ownerID)
	if err != nil {
		return fmt.Errorf("sales: set lifecycle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) SetPayment(ctx context.Context, q db.Querier, ownerID, id int64, paid float64, status PaymentStatus) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE invoices SET paid_amount = $1, status = $2, updated_at = now()
		WHERE id = $3 AND owner_id = $4`, paid, status, id, ownerID)
	if err != nil {
		return fmt.Errorf("sales: set payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) CountByYear(ctx context.Context, q db.Querier, ownerID int64, year int) (int64, error) {
	var count int64
	err := r.querier(q).QueryRow(ctx, `SELECT count(*) FROM invoices
		WHERE owner_id = $1 AND number LIKE $2`, ownerID, fmt.Sprintf("INV-%d-%%", year)).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sales: count invoices: %w", err)
	}
	return count, nil
}
