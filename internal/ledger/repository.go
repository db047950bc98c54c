package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Repository persists signed ledger entries and the cached party balances.
// Every method accepts a db.Querier so callers can thread a transaction from
// the unit-of-work manager; a nil q falls back to the pool.
type Repository interface {
	InsertEntry(ctx context.Context, q db.Querier, e *Entry) (int64, error)
	GetEntry(ctx context.Context, q db.Querier, kind PartyKind, id int64) (*Entry, error)
	ListEntries(ctx context.Context, q db.Querier, kind PartyKind, partyID, ownerID int64) ([]Entry, error)
	UpdateEntry(ctx context.Context, q db.Querier, e *Entry) error
	DeleteEntry(ctx context.Context, q db.Querier, kind PartyKind, id int64) error
	DeleteEntriesByRef(ctx context.Context, q db.Querier, kind PartyKind, refType RefType, refID int64) error
	UpdateEntryBalances(ctx context.Context, q db.Querier, kind PartyKind, updates []BalanceUpdate) error

	PartyBalance(ctx context.Context, q db.Querier, kind PartyKind, partyID, ownerID int64) (float64, error)
	SetPartyBalance(ctx context.Context, q db.Querier, kind PartyKind, partyID, ownerID int64, balance float64) error
	AddPartyBalance(ctx context.Context, q db.Querier, kind PartyKind, partyID, ownerID int64, delta float64) error
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

func entryTable(kind PartyKind) (string, error) {
	switch kind {
	case PartyCustomer:
		return "customer_ledger_entries", nil
	case PartySupplier:
		return "supplier_ledger_entries", nil
	default:
		return "", fmt.Errorf("ledger: unknown party kind %q", kind)
	}
}

func partyTable(kind PartyKind) (string, error) {
	switch kind {
	case PartyCustomer:
		return "customers", nil
	case PartySupplier:
		return "suppliers", nil
	default:
		return "", fmt.Errorf("ledger: unknown party kind %q", kind)
	}
}

const entryColumns = `id, party_id, owner_id, entry_date, ref_type, ref_id, ref_no, description, debit, credit, balance, created_at, updated_at`

func scanEntry(row pgx.Row, kind PartyKind) (*Entry, error) {
	var e Entry
	e.Kind = kind
	err := row.Scan(&e.ID, &e.PartyID, &e.OwnerID, &e.Date, &e.RefType, &e.RefID, &e.RefNo,
		&e.Description, &e.Debit, &e.Credit, &e.Balance, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("ledger: scan entry: %w", err)
	}
	return &e, nil
}

func (r *pgRepository) InsertEntry(ctx context.Context, q db.Querier, e *Entry) (int64, error) {
	table, err := entryTable(e.Kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`INSERT INTO %s
		(party_id, owner_id, entry_date, ref_type, ref_id, ref_no, description, debit, credit, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`, table)
	err = r.querier(q).QueryRow(ctx, query,
		e.PartyID, e.OwnerID, e.Date, e.RefType, e.RefID, e.RefNo,
		e.Description, e.Debit, e.Credit, e.Balance,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("ledger: insert entry: %w", err)
	}
	return e.ID, nil
}

func (r *pgRepository) GetEntry(ctx context.Context, q db.Querier, kind PartyKind, id int64) (*Entry, error) {
	table, err := entryTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, entryColumns, table)
	return scanEntry(r.querier(q).QueryRow(ctx, query, id), kind)
}

func (r *pgRepository) ListEntries(ctx context.Context, q db.Querier, kind PartyKind, partyID, ownerID int64) ([]Entry, error) {
	table, err := entryTable(kind)
	if err != nil {
		return nil, err
	}
	// Canonical statement order: business date first, insertion time as the
	// tie-breaker. Every balance fold depends on this ordering.
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE party_id = $1 AND owner_id = $2
		ORDER BY entry_date ASC, created_at ASC, id ASC`, entryColumns, table)
	rows, err := r.querier(q).Query(ctx, query, partyID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows, kind)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}
	return entries, nil
}

func (r *pgRepository) UpdateEntry(ctx context.Context, q db.Querier, e *Entry) error {
	table, err := entryTable(e.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET
		entry_date = $1, ref_type = $2, ref_id = $3, ref_no = $4, description = $5,
		debit = $6, credit = $7, updated_at = now()
		WHERE id = $8`, table)
	tag, err := r.querier(q).Exec(ctx, query,
		e.Date, e.RefType, e.RefID, e.RefNo, e.Description, e.Debit, e.Credit, e.ID)
	if err != nil {
		return fmt.Errorf("ledger: update entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) DeleteEntry(ctx context.Context, q db.Querier, kind PartyKind, id int64) error {
	table, err := entryTable(kind)
	if err != nil {
		return err
	}
	tag, err := r.querier(q).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("ledger: delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) DeleteEntriesByRef(ctx context.Context, q db.Querier, kind PartyKind, refType RefType, refID int64) error {
	table, err := entryTable(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE ref_type = $1 AND ref_id = $2`, table)
	if _, err := r.querier(q).Exec(ctx, query, refType, refID); err != nil {
		return fmt.Errorf("ledger: delete entries by ref: %w", err)
	}
	return nil
}

func (r *pgRepository) UpdateEntryBalances(ctx context.Context, q db.Querier, kind PartyKind, updates []BalanceUpdate) error {
	table, err := entryTable(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET balance = $1, updated_at = now() WHERE id = $2`, table)
	for _, u := range updates {
		if _, err := r.querier(q).Exec(ctx, query, u.Balance, u.EntryID); err != nil {
			return fmt.Errorf("ledger: update entry balance %d: %w", u.EntryID, err)
		}
	}
	return nil
}

func (r *pgRepository) PartyBalance(ctx context.Context, q db.Querier, kind PartyKind, partyID, ownerID int64) (float64, error) {
	table, err := partyTable(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT balance FROM %s WHERE id = $1 AND owner_id = $2`, table)
	var balance float64
	if err := r.querier(q).QueryRow(ctx, query, partyID, ownerID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, fmt.Errorf("ledger: party balance: %w", err)
	}
	return balance, nil
}

func (r *pgRepository) SetPartyBalance(ctx context.Context, q db.Querier, kind PartyKind, partyID, ownerID int64, balance float64) error {
	table, err := partyTable(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET balance = $1, updated_at = now() WHERE id = $2 AND owner_id = $3`, table)
	tag, err := r.querier(q).Exec(ctx, query, balance, partyID, ownerID)
	if err != nil {
		return fmt.Errorf("ledger: set party balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) AddPartyBalance(ctx context.Context, q db.Querier, kind PartyKind, partyID, ownerID int64, delta float64) error {
	table, err := partyTable(kind)
	if err != nil {
		return err
	}
	// Atomic read-modify-write in a single statement; concurrent increments
	// never lose updates even outside a transaction.
	query := fmt.Sprintf(`UPDATE %s SET balance = balance + $1, updated_at = now() WHERE id = $2 AND owner_id = $3`, table)
	tag, err := r.querier(q).Exec(ctx, query, delta, partyID, ownerID)
	if err != nil {
		return fmt.Errorf("ledger: add party balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
