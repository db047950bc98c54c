package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// ClosingRow is one ledger with its accumulated balance as of a date,
// debit-positive, joined with its group for report grouping.
type ClosingRow struct {
	LedgerID   int64
	LedgerName string
	GroupName  string
	Nature     Nature
	Balance    float64
}

// MovementRow is one ledger's net movement (debit minus credit) over a period.
type MovementRow struct {
	LedgerID   int64
	LedgerName string
	GroupName  string
	Nature     Nature
	Net        float64
}

// Repository persists the chart of accounts and journal vouchers. Methods
// accept a db.Querier so voucher posting can run under the unit-of-work
// manager; nil falls back to the pool.
type Repository interface {
	ListGroups(ctx context.Context, q db.Querier, ownerID int64) ([]Group, error)
	GetGroup(ctx context.Context, q db.Querier, ownerID, id int64) (*Group, error)
	InsertGroup(ctx context.Context, q db.Querier, g *Group) error
	UpdateGroup(ctx context.Context, q db.Querier, g *Group) error
	DeleteGroup(ctx context.Context, q db.Querier, ownerID, id int64) error
	CountGroupDependents(ctx context.Context, q db.Querier, ownerID, id int64) (int64, error)

	ListLedgers(ctx context.Context, q db.Querier, ownerID int64) ([]Ledger, error)
	GetLedger(ctx context.Context, q db.Querier, ownerID, id int64) (*Ledger, error)
	InsertLedger(ctx context.Context, q db.Querier, l *Ledger) error
	UpdateLedger(ctx context.Context, q db.Querier, l *Ledger) error
	DeleteLedger(ctx context.Context, q db.Querier, ownerID, id int64) error
	CountLedgerLines(ctx context.Context, q db.Querier, ownerID, id int64) (int64, error)
	AddLedgerBalance(ctx context.Context, q db.Querier, ownerID, id int64, delta float64) error

	InsertVoucher(ctx context.Context, q db.Querier, v *Voucher) error
	GetVoucher(ctx context.Context, q db.Querier, ownerID, id int64) (*Voucher, error)
	ListVouchers(ctx context.Context, q db.Querier, ownerID int64, page shared.Page) ([]Voucher, error)
	SetVoucherStatus(ctx context.Context, q db.Querier, ownerID, id int64, status VoucherStatus) error
	CountVouchersByPrefix(ctx context.Context, q db.Querier, ownerID int64, prefix string, year int) (int64, error)

	LedgerBalances(ctx context.Context, q db.Querier, ownerID int64, asOf time.Time) ([]ClosingRow, error)
	LedgerMovements(ctx context.Context, q db.Querier, ownerID int64, from, to time.Time) ([]MovementRow, error)
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

func (r *pgRepository) ListGroups(ctx context.Context, q db.Querier, ownerID int64) ([]Group, error) {
	rows, err := r.querier(q).Query(ctx, `SELECT id, owner_id, name, nature, parent_id, created_at, updated_at
		FROM account_groups WHERE owner_id = $1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("accounting: list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Nature, &g.ParentID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("accounting: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *pgRepository) GetGroup(ctx context.Context, q db.Querier, ownerID, id int64) (*Group, error) {
	var g Group
	err := r.querier(q).QueryRow(ctx, `SELECT id, owner_id, name, nature, parent_id, created_at, updated_at
		FROM account_groups WHERE id = $1 AND owner_id = $2`, id, ownerID).
		Scan(&g.ID, &g.OwnerID, &g.Name, &g.Nature, &g.ParentID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("accounting: get group: %w", err)
	}
	return &g, nil
}

func (r *pgRepository) InsertGroup(ctx context.Context, q db.Querier, g *Group) error {
	err := r.querier(q).QueryRow(ctx, `INSERT INTO account_groups (owner_id, name, nature, parent_id)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		g.OwnerID, g.Name, g.Nature, g.ParentID).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("accounting: insert group: %w", err)
	}
	return nil
}

func (r *pgRepository) UpdateGroup(ctx context.Context, q db.Querier, g *Group) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE account_groups SET name = $1, nature = $2, parent_id = $3, updated_at = now()
		WHERE id = $4 AND owner_id = $5`, g.Name, g.Nature, g.ParentID, g.ID, g.OwnerID)
	if err != nil {
		return fmt.Errorf("accounting: update group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) DeleteGroup(ctx context.Context, q db.Querier, ownerID, id int64) error {
	tag, err := r.querier(q).Exec(ctx, `DELETE FROM account_groups WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("accounting: delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) CountGroupDependents(ctx context.Context, q db.Querier, ownerID, id int64) (int64, error) {
	var count int64
	err := r.querier(q).QueryRow(ctx, `SELECT
		(SELECT count(*) FROM account_groups WHERE parent_id = $1 AND owner_id = $2) +
		(SELECT count(*) FROM account_ledgers WHERE group_id = $1 AND owner_id = $2)`, id, ownerID).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("accounting: count group dependents: %w", err)
	}
	return count, nil
}

func (r *pgRepository) ListLedgers(ctx context.Context, q db.Querier, ownerID int64) ([]Ledger, error) {
	rows, err := r.querier(q).Query(ctx, `SELECT id, owner_id, group_id, name, opening_balance, current_balance, created_at, updated_at
		FROM account_ledgers WHERE owner_id = $1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("accounting: list ledgers: %w", err)
	}
	defer rows.Close()

	var ledgers []Ledger
	for rows.Next() {
		var l Ledger
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.GroupID, &l.Name, &l.OpeningBalance, &l.CurrentBalance, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("accounting: scan ledger: %w", err)
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

func (r *pgRepository) GetLedger(ctx context.Context, q db.Querier, ownerID, id int64) (*Ledger, error) {
	var l Ledger
	err := r.querier(q).QueryRow(ctx, `SELECT id, owner_id, group_id, name, opening_balance, current_balance, created_at, updated_at
		FROM account_ledgers WHERE id = $1 AND owner_id = $2`, id, ownerID).
		Scan(&l.ID, &l.OwnerID, &l.GroupID, &l.Name, &l.OpeningBalance, &l.CurrentBalance, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("accounting: get ledger: %w", err)
	}
	return &l, nil
}

func (r *pgRepository) InsertLedger(ctx context.Context, q db.Querier, l *Ledger) error {
	err := r.querier(q).QueryRow(ctx, `INSERT INTO account_ledgers (owner_id, group_id, name, opening_balance, current_balance)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		l.OwnerID, l.GroupID, l.Name, l.OpeningBalance, l.CurrentBalance).
		Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("accounting: insert ledger: %w", err)
	}
	return nil
}

func (r *pgRepository) UpdateLedger(ctx context.Context, q db.Querier, l *Ledger) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE account_ledgers SET name = $1, group_id = $2, updated_at = now()
		WHERE id = $3 AND owner_id = $4`, l.Name, l.GroupID, l.ID, l.OwnerID)
	if err != nil {
		return fmt.Errorf("accounting: update ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) DeleteLedger(ctx context.Context, q db.Querier, ownerID, id int64) error {
	tag, err := r.querier(q).Exec(ctx, `DELETE FROM account_ledgers WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("accounting: delete ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) CountLedgerLines(ctx context.Context, q db.Querier, ownerID, id int64) (int64, error) {
	var count int64
	err := r.querier(q).QueryRow(ctx, `SELECT count(*) FROM journal_voucher_lines l
		JOIN journal_vouchers v ON v.id = l.voucher_id
		WHERE l.ledger_id = $1 AND v.owner_id = $2`, id, ownerID).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("accounting: count ledger lines: %w", err)
	}
	return count, nil
}

func (r *pgRepository) AddLedgerBalance(ctx context.Context, q db.Querier, ownerID, id int64, delta float64) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE account_ledgers SET current_balance = current_balance + $1, updated_at = now()
		WHERE id = $2 AND owner_id = $3`, delta, id, ownerID)
	if err != nil {
		return fmt.Errorf("accounting: add ledger balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) InsertVoucher(ctx context.Context, q db.Querier, v *Voucher) error {
	err := r.querier(q).QueryRow(ctx, `INSERT INTO journal_vouchers (owner_id, number, type, voucher_date, narration, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
		v.OwnerID, v.Number, v.Type, v.Date, v.Narration, v.Status).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("accounting: insert voucher: %w", err)
	}
	for i := range v.Lines {
		line := &v.Lines[i]
		line.VoucherID = v.ID
		err := r.querier(q).QueryRow(ctx, `INSERT INTO journal_voucher_lines (voucher_id, ledger_id, debit, credit)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			line.VoucherID, line.LedgerID, line.Debit, line.Credit).
			Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("accounting: insert voucher line: %w", err)
		}
	}
	return nil
}

func (r *pgRepository) GetVoucher(ctx context.Context, q db.Querier, ownerID, id int64) (*Voucher, error) {
	var v Voucher
	err := r.querier(q).QueryRow(ctx, `SELECT id, owner_id, number, type, voucher_date, narration, status, created_at, updated_at
		FROM journal_vouchers WHERE id = $1 AND owner_id = $2`, id, ownerID).
		Scan(&v.ID, &v.OwnerID, &v.Number, &v.Type, &v.Date, &v.Narration, &v.Status, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("accounting: get voucher: %w", err)
	}

	rows, err := r.querier(q).Query(ctx, `SELECT id, voucher_id, ledger_id, debit, credit
		FROM journal_voucher_lines WHERE voucher_id = $1 ORDER BY id`, v.ID)
	if err != nil {
		return nil, fmt.Errorf("accounting: voucher lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l VoucherLine
		if err := rows.Scan(&l.ID, &l.VoucherID, &l.LedgerID, &l.Debit, &l.Credit); err != nil {
			return nil, fmt.Errorf("accounting: scan voucher line: %w", err)
		}
		v.Lines = append(v.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *pgRepository) ListVouchers(ctx context.Context, q db.Querier, ownerID int64, page shared.Page) ([]Voucher, error) {
	rows, err := r.querier(q).Query(ctx, `SELECT id, owner_id, number, type, voucher_date, narration, status, created_at, updated_at
		FROM journal_vouchers WHERE owner_id = $1
		ORDER BY voucher_date DESC, id DESC LIMIT $2 OFFSET $3`, ownerID, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("accounting: list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []Voucher
	for rows.Next() {
		var v Voucher
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Number, &v.Type, &v.Date, &v.Narration, &v.Status, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("accounting: scan voucher: %w", err)
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func (r *pgRepository) SetVoucherStatus(ctx context.Context, q db.Querier, ownerID, id int64, status VoucherStatus) error {
	tag, err := r.querier(q).Exec(ctx, `UPDATE journal_vouchers SET status = $1, updated_at = now()
		WHERE id = $2 AND owner_id = $3`, status, id, ownerID)
	if err != nil {
		return fmt.Errorf("accounting: set voucher status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) CountVouchersByPrefix(ctx context.Context, q db.Querier, ownerID int64, prefix string, year int) (int64, error) {
	var count int64
	err := r.querier(q).QueryRow(ctx, `SELECT count(*) FROM journal_vouchers
		WHERE owner_id = $1 AND number LIKE $2`, ownerID, fmt.Sprintf("%s-%d-%%", prefix, year)).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("accounting: count vouchers: %w", err)
	}
	return count, nil
}

func (r *pgRepository) LedgerBalances(ctx context.Context, q db.Querier, ownerID int64, asOf time.Time) ([]ClosingRow, error) {
	rows, err := r.querier(q).Query(ctx, `SELECT al.id, al.name, ag.name, ag.nature,
		al.opening_balance + COALESCE(SUM(jl.debit - jl.credit), 0)
		FROM account_ledgers al
		JOIN account_groups ag ON ag.id = al.group_id
		LEFT JOIN (journal_voucher_lines jl
			JOIN journal_vouchers jv ON jv.id = jl.voucher_id
				AND jv.status = 'Active' AND jv.voucher_date <= $2)
			ON jl.ledger_id = al.id
		WHERE al.owner_id = $1
		GROUP BY al.id, al.name, ag.name, ag.nature
		ORDER BY ag.nature, al.name`, ownerID, asOf)
	if err != nil {
		return nil, fmt.Errorf("accounting: ledger balances: %w", err)
	}
	defer rows.Close()

	var out []ClosingRow
	for rows.Next() {
		var c ClosingRow
		if err := rows.Scan(&c.LedgerID, &c.LedgerName, &c.GroupName, &c.Nature, &c.Balance); err != nil {
			return nil, fmt.Errorf("accounting: scan closing row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgRepository) LedgerMovements(ctx context.Context, q db.Querier, ownerID int64, from, to time.Time) ([]MovementRow, error) {
	rows, err := r.querier(q).Query(ctx, `SELECT al.id, al.name, ag.name, ag.nature,
		COALESCE(SUM(jl.debit - jl.credit), 0)
		FROM account_ledgers al
		JOIN account_groups ag ON ag.id = al.group_id
		LEFT JOIN (journal_voucher_lines jl
			JOIN journal_vouchers jv ON jv.id = jl.voucher_id
				AND jv.status = 'Active' AND jv.voucher_date BETWEEN $2 AND $3)
			ON jl.ledger_id = al.id
		WHERE al.owner_id = $1 AND ag.nature IN ('Income', 'Expenses')
		GROUP BY al.id, al.name, ag.name, ag.nature
		ORDER BY ag.nature, al.name`, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("accounting: ledger movements: %w", err)
	}
	defer rows.Close()

	var out []MovementRow
	for rows.Next() {
		var m MovementRow
		if err := rows.Scan(&m.LedgerID, &m.LedgerName, &m.GroupName, &m.Nature, &m.Net); err != nil {
			return nil, fmt.Errorf("accounting: scan movement row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
