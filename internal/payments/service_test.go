package payments

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

type stubStore struct{}

func (stubStore) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (stubStore) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (stubStore) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (stubStore) Begin(context.Context) (db.Tx, error)                    { return nil, db.ErrTxUnsupported }

type memParty struct {
	ownerID int64
	balance float64
}

// memLedger is a minimal in-memory ledger.Repository.
type memLedger struct {
	seq     int64
	clock   time.Time
	entries map[int64]*ledger.Entry
	parties map[ledger.PartyKind]map[int64]*memParty
}

func newMemLedger() *memLedger {
	return &memLedger{
		clock:   time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		entries: map[int64]*ledger.Entry{},
		parties: map[ledger.PartyKind]map[int64]*memParty{
			ledger.PartyCustomer: {},
			ledger.PartySupplier: {},
		},
	}
}

func (r *memLedger) InsertEntry(_ context.Context, _ db.Querier, e *ledger.Entry) (int64, error) {
	r.seq++
	r.clock = r.clock.Add(time.Second)
	e.ID = r.seq
	e.CreatedAt = r.clock
	cp := *e
	r.entries[e.ID] = &cp
	return e.ID, nil
}

func (r *memLedger) GetEntry(_ context.Context, _ db.Querier, kind ledger.PartyKind, id int64) (*ledger.Entry, error) {
	e, ok := r.entries[id]
	if !ok || e.Kind != kind {
		return nil, shared.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memLedger) ListEntries(_ context.Context, _ db.Querier, kind ledger.PartyKind, partyID, ownerID int64) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range r.entries {
		if e.Kind == kind && e.PartyID == partyID && e.OwnerID == ownerID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memLedger) UpdateEntry(_ context.Context, _ db.Querier, e *ledger.Entry) error {
	cur, ok := r.entries[e.ID]
	if !ok {
		return shared.ErrNotFound
	}
	*cur = *e
	return nil
}

func (r *memLedger) DeleteEntry(_ context.Context, _ db.Querier, _ ledger.PartyKind, id int64) error {
	delete(r.entries, id)
	return nil
}

func (r *memLedger) DeleteEntriesByRef(_ context.Context, _ db.Querier, kind ledger.PartyKind, refType ledger.RefType, refID int64) error {
	for id, e := range r.entries {
		if e.Kind == kind && e.RefType == refType && e.RefID != nil && *e.RefID == refID {
			delete(r.entries, id)
		}
	}
	return nil
}

func (r *memLedger) UpdateEntryBalances(_ context.Context, _ db.Querier, _ ledger.PartyKind, updates []ledger.BalanceUpdate) error {
	for _, u := range updates {
		if e, ok := r.entries[u.EntryID]; ok {
			e.Balance = u.Balance
		}
	}
	return nil
}

func (r *memLedger) PartyBalance(_ context.Context, _ db.Querier, kind ledger.PartyKind, partyID, ownerID int64) (float64, error) {
	p, ok := r.parties[kind][partyID]
	if !ok || p.ownerID != ownerID {
		return 0, shared.ErrNotFound
	}
	return p.balance, nil
}

func (r *memLedger) SetPartyBalance(_ context.Context, _ db.Querier, kind ledger.PartyKind, partyID, ownerID int64, balance float64) error {
	p, ok := r.parties[kind][partyID]
	if !ok || p.ownerID != ownerID {
		return shared.ErrNotFound
	}
	p.balance = balance
	return nil
}

func (r *memLedger) AddPartyBalance(_ context.Context, _ db.Querier, kind ledger.PartyKind, partyID, ownerID int64, delta float64) error {
	p, ok := r.parties[kind][partyID]
	if !ok || p.ownerID != ownerID {
		return shared.ErrNotFound
	}
	p.balance += delta
	return nil
}

type memPayments struct {
	seq  int64
	rows map[int64]*Payment
}

func newMemPayments() *memPayments {
	return &memPayments{rows: map[int64]*Payment{}}
}

func (r *memPayments) Insert(_ context.Context, _ db.Querier, p *Payment) error {
	for _, row := range r.rows {
		if row.OwnerID == p.OwnerID && row.Reference == p.Reference {
			return shared.ErrDuplicate
		}
	}
	r.seq++
	p.ID = r.seq
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *memPayments) Get(_ context.Context, _ db.Querier, ownerID, id int64) (*Payment, error) {
	p, ok := r.rows[id]
	if !ok || p.OwnerID != ownerID {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPayments) ListByParty(_ context.Context, _ db.Querier, ownerID int64, kind ledger.PartyKind, partyID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range r.rows {
		if p.OwnerID == ownerID && p.Kind == kind && p.PartyID == partyID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memPayments) ListByDate(_ context.Context, _ db.Querier, ownerID int64, day time.Time) ([]Payment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var out []Payment
	for _, p := range r.rows {
		if p.OwnerID == ownerID && !p.Date.Before(start) && p.Date.Before(end) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPayments) MarkReversed(_ context.Context, _ db.Querier, ownerID, id int64) error {
	p, ok := r.rows[id]
	if !ok || p.OwnerID != ownerID || p.Reversed {
		return shared.ErrNotFound
	}
	p.Reversed = true
	return nil
}

const ownerID = int64(4)

func newTestService(t *testing.T) (*Service, *memPayments, *memLedger) {
	t.Helper()
	ledgers := newMemLedger()
	repo := newMemPayments()
	logger := slog.New(slog.DiscardHandler)
	uow := db.NewManager(stubStore{}, logger)
	uow.SetCapabilities(db.Capabilities{Transactions: false})
	svc := NewService(repo, ledgers, uow, logger)
	svc.WithNow(func() time.Time { return time.Date(2026, 5, 20, 11, 0, 0, 0, time.UTC) })
	return svc, repo, ledgers
}

func TestRecordCustomerPaymentDropsReceivable(t *testing.T) {
	svc, repo, ledgers := newTestService(t)
	ledgers.parties[ledger.PartyCustomer][1] = &memParty{ownerID: ownerID, balance: 5000}
	ctx := context.Background()

	p, err := svc.RecordCustomerPayment(ctx, ownerID, RecordInput{
		PartyID: 1, Amount: 2000, Method: MethodUPI,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), p.ID)
	require.NotEmpty(t, p.Reference)
	require.InDelta(t, 3000, ledgers.parties[ledger.PartyCustomer][1].balance, 0.001)

	// The statement gained a credit entry referencing the payment.
	entries, err := ledgers.ListEntries(ctx, nil, ledger.PartyCustomer, 1, ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ledger.RefPayment, entries[0].RefType)
	require.InDelta(t, 2000, entries[0].Credit, 0.001)
	require.NotNil(t, entries[0].RefID)
	require.Equal(t, p.ID, *entries[0].RefID)
	require.Len(t, repo.rows, 1)
}

func TestRecordSupplierPaymentDropsPayable(t *testing.T) {
	svc, _, ledgers := newTestService(t)
	ledgers.parties[ledger.PartySupplier][7] = &memParty{ownerID: ownerID, balance: 9000}
	ctx := context.Background()

	_, err := svc.RecordSupplierPayment(ctx, ownerID, RecordInput{
		PartyID: 7, Amount: 4000, Method: MethodBank,
	})
	require.NoError(t, err)
	require.InDelta(t, 5000, ledgers.parties[ledger.PartySupplier][7].balance, 0.001)

	entries, err := ledgers.ListEntries(ctx, nil, ledger.PartySupplier, 7, ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.InDelta(t, 4000, entries[0].Debit, 0.001)
}

func TestIncrementedBalanceAgreesWithRecalculation(t *testing.T) {
	svc, _, ledgers := newTestService(t)
	ledgers.parties[ledger.PartyCustomer][1] = &memParty{ownerID: ownerID}
	ctx := context.Background()

	for range 5 {
		_, err := svc.RecordCustomerPayment(ctx, ownerID, RecordInput{
			PartyID: 1, Amount: 100, Method: MethodCash,
		})
		require.NoError(t, err)
	}
	incremented := ledgers.parties[ledger.PartyCustomer][1].balance

	recalc := ledger.NewRecalculator(ledgers)
	final, err := recalc.Recalculate(ctx, nil, ledger.PartyCustomer, 1, ownerID)
	require.NoError(t, err)
	require.InDelta(t, incremented, final, ledger.BalanceEpsilon)
	require.InDelta(t, -500, final, ledger.BalanceEpsilon)
}

func TestReversePaymentRestoresBalance(t *testing.T) {
	svc, repo, ledgers := newTestService(t)
	ledgers.parties[ledger.PartyCustomer][1] = &memParty{ownerID: ownerID, balance: 5000}
	ctx := context.Background()

	p, err := svc.RecordCustomerPayment(ctx, ownerID, RecordInput{
		PartyID: 1, Amount: 2000, Method: MethodCash,
	})
	require.NoError(t, err)

	reversed, err := svc.Reverse(ctx, ownerID, p.ID)
	require.NoError(t, err)
	require.True(t, reversed.Reversed)
	require.True(t, repo.rows[p.ID].Reversed)

	// Credit then reversal debit cancel out; the opening 5000 receivable was
	// never an entry, so recalculation settles on the fold of the statement.
	entries, err := ledgers.ListEntries(ctx, nil, ledger.PartyCustomer, 1, ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.InDelta(t, 0, ledgers.parties[ledger.PartyCustomer][1].balance, 0.001)

	_, err = svc.Reverse(ctx, ownerID, p.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordPaymentReferenceIsIdempotencyKey(t *testing.T) {
	svc, repo, ledgers := newTestService(t)
	ledgers.parties[ledger.PartyCustomer][1] = &memParty{ownerID: ownerID, balance: 5000}
	ctx := context.Background()

	p, err := svc.RecordCustomerPayment(ctx, ownerID, RecordInput{
		PartyID: 1, Amount: 2000, Method: MethodUPI, Reference: "till-42-0001",
	})
	require.NoError(t, err)
	require.Equal(t, "till-42-0001", p.Reference)

	// A retry with the same reference is rejected, not double-booked.
	_, err = svc.RecordCustomerPayment(ctx, ownerID, RecordInput{
		PartyID: 1, Amount: 2000, Method: MethodUPI, Reference: "till-42-0001",
	})
	require.ErrorIs(t, err, shared.ErrDuplicate)
	require.Len(t, repo.rows, 1)
	require.InDelta(t, 3000, ledgers.parties[ledger.PartyCustomer][1].balance, 0.001)
}

func TestRecordPaymentValidation(t *testing.T) {
	svc, _, ledgers := newTestService(t)
	ledgers.parties[ledger.PartyCustomer][1] = &memParty{ownerID: ownerID}
	ctx := context.Background()

	_, err := svc.RecordCustomerPayment(ctx, ownerID, RecordInput{PartyID: 1, Amount: 0, Method: MethodCash})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RecordCustomerPayment(ctx, ownerID, RecordInput{PartyID: 1, Amount: 50, Method: "Barter"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordPaymentUnknownPartyRollsBack(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.RecordCustomerPayment(context.Background(), ownerID, RecordInput{
		PartyID: 404, Amount: 50, Method: MethodCash,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
