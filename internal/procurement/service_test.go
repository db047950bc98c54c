package procurement

import (
	"context"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/tillbook/tillbook/internal/inventory"
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
		clock:   time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
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

type memPurchases struct {
	seq  int64
	rows map[int64]*Purchase
}

func newMemPurchases() *memPurchases {
	return &memPurchases{rows: map[int64]*Purchase{}}
}

func (r *memPurchases) Insert(_ context.Context, _ db.Querier, p *Purchase) error {
	r.seq++
	p.ID = r.seq
	cp := *p
	r.rows[p.ID] = &cp
	return nil
}

func (r *memPurchases) Get(_ context.Context, _ db.Querier, ownerID, id int64) (*Purchase, error) {
	p, ok := r.rows[id]
	if !ok || p.OwnerID != ownerID {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPurchases) ListBySupplier(_ context.Context, _ db.Querier, ownerID, supplierID int64, _ shared.Page) ([]Purchase, error) {
	var out []Purchase
	for _, p := range r.rows {
		if p.OwnerID == ownerID && p.SupplierID == supplierID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memPurchases) ListByDate(_ context.Context, _ db.Querier, ownerID int64, day time.Time) ([]Purchase, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var out []Purchase
	for _, p := range r.rows {
		if p.OwnerID == ownerID && !p.Date.Before(start) && p.Date.Before(end) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPurchases) AddReturned(_ context.Context, _ db.Querier, ownerID, id int64, amount float64) error {
	p, ok := r.rows[id]
	if !ok || p.OwnerID != ownerID {
		return shared.ErrNotFound
	}
	if p.ReturnedAmount+amount > p.Amount+0.01 {
		return shared.Validationf("return exceeds purchase amount")
	}
	p.ReturnedAmount += amount
	return nil
}

// memStock implements StockPort over a plain product map.
type memStock struct {
	products map[int64]*inventory.Product
}

func (s *memStock) ValidateAvailability(_ context.Context, _ db.Querier, ownerID int64, reqs []inventory.Requirement) error {
	var stockErr shared.StockError
	for _, req := range reqs {
		p, ok := s.products[req.ProductID]
		if !ok || p.OwnerID != ownerID {
			return shared.Validationf("product %d not found", req.ProductID)
		}
		if p.Stock < req.Quantity {
			stockErr.Shortages = append(stockErr.Shortages, shared.StockShortage{
				ProductID: p.ID, Product: p.Name, Requested: req.Quantity, Available: p.Stock,
			})
		}
	}
	if len(stockErr.Shortages) > 0 {
		return &stockErr
	}
	return nil
}

func (s *memStock) Deduct(_ context.Context, _ db.Querier, ownerID int64, reqs []inventory.Requirement) error {
	for _, req := range reqs {
		p, ok := s.products[req.ProductID]
		if !ok || p.OwnerID != ownerID {
			return shared.ErrNotFound
		}
		p.Stock -= req.Quantity
	}
	return nil
}

func (s *memStock) Restore(_ context.Context, _ db.Querier, ownerID int64, reqs []inventory.Requirement) error {
	for _, req := range reqs {
		p, ok := s.products[req.ProductID]
		if !ok || p.OwnerID != ownerID {
			return shared.ErrNotFound
		}
		p.Stock += req.Quantity
	}
	return nil
}

const (
	ownerID    = int64(6)
	supplierID = int64(31)
)

type fixture struct {
	svc       *Service
	purchases *memPurchases
	stock     *memStock
	ledgers   *memLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		purchases: newMemPurchases(),
		ledgers:   newMemLedger(),
		stock: &memStock{products: map[int64]*inventory.Product{
			1: {ID: 1, OwnerID: ownerID, Name: "Notebook", Stock: 20},
			2: {ID: 2, OwnerID: ownerID, Name: "Pen", Stock: 50},
		}},
	}
	f.ledgers.parties[ledger.PartySupplier][supplierID] = &memParty{ownerID: ownerID}
	logger := slog.New(slog.DiscardHandler)
	uow := db.NewManager(stubStore{}, logger)
	uow.SetCapabilities(db.Capabilities{Transactions: false})
	f.svc = NewService(f.purchases, f.stock, f.ledgers, uow, logger)
	f.svc.WithNow(func() time.Time { return time.Date(2026, 5, 21, 10, 0, 0, 0, time.UTC) })
	return f
}

func TestRecordPurchaseRaisesPayableAndStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.RecordPurchase(ctx, ownerID, RecordInput{
		SupplierID: supplierID,
		BillNo:     "B-101",
		Items: []ItemInput{
			{ProductID: 1, Quantity: 10, UnitCost: 300},
			{ProductID: 2, Quantity: 100, UnitCost: 25},
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 5500, p.Amount, 0.001) // 10x300 + 100x25
	require.InDelta(t, 30, f.stock.products[1].Stock, 0.001)
	require.InDelta(t, 150, f.stock.products[2].Stock, 0.001)
	require.InDelta(t, 5500, f.ledgers.parties[ledger.PartySupplier][supplierID].balance, 0.001)

	entries, err := f.ledgers.ListEntries(ctx, nil, ledger.PartySupplier, supplierID, ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ledger.RefPurchase, entries[0].RefType)
	require.Equal(t, "B-101", entries[0].RefNo)
	require.InDelta(t, 5500, entries[0].Credit, 0.001)
	require.NotNil(t, entries[0].RefID)
	require.Equal(t, p.ID, *entries[0].RefID)
}

func TestRecordPurchaseExplicitAmountWithoutItems(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.RecordPurchase(context.Background(), ownerID, RecordInput{
		SupplierID: supplierID, Amount: 1200, Note: "Freight",
	})
	require.NoError(t, err)
	require.InDelta(t, 1200, p.Amount, 0.001)
	require.InDelta(t, 20, f.stock.products[1].Stock, 0.001)
	require.InDelta(t, 1200, f.ledgers.parties[ledger.PartySupplier][supplierID].balance, 0.001)
}

func TestRecordPurchaseValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordPurchase(ctx, ownerID, RecordInput{SupplierID: supplierID})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.RecordPurchase(ctx, ownerID, RecordInput{
		SupplierID: supplierID,
		Items:      []ItemInput{{ProductID: 1, Quantity: 0, UnitCost: 10}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestIncrementedPayableAgreesWithRecalculation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 4 {
		_, err := f.svc.RecordPurchase(ctx, ownerID, RecordInput{
			SupplierID: supplierID, Amount: 250,
		})
		require.NoError(t, err)
	}
	incremented := f.ledgers.parties[ledger.PartySupplier][supplierID].balance

	recalc := ledger.NewRecalculator(f.ledgers)
	final, err := recalc.Recalculate(ctx, nil, ledger.PartySupplier, supplierID, ownerID)
	require.NoError(t, err)
	require.InDelta(t, incremented, final, ledger.BalanceEpsilon)
	require.InDelta(t, 1000, final, ledger.BalanceEpsilon)
}

func TestRecordReturnDebitsSupplierAndDeductsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.RecordPurchase(ctx, ownerID, RecordInput{
		SupplierID: supplierID,
		Items:      []ItemInput{{ProductID: 1, Quantity: 10, UnitCost: 300}},
	})
	require.NoError(t, err)

	returned, err := f.svc.RecordReturn(ctx, ownerID, p.ID, ReturnInput{
		Amount: 900,
		Items:  []ItemInput{{ProductID: 1, Quantity: 3}},
	})
	require.NoError(t, err)
	require.InDelta(t, 900, returned.ReturnedAmount, 0.001)
	require.InDelta(t, 27, f.stock.products[1].Stock, 0.001)
	require.InDelta(t, 2100, f.ledgers.parties[ledger.PartySupplier][supplierID].balance, 0.001)

	entries, err := f.ledgers.ListEntries(ctx, nil, ledger.PartySupplier, supplierID, ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ledger.RefReturn, entries[1].RefType)
	require.InDelta(t, 900, entries[1].Debit, 0.001)
	require.InDelta(t, 2100, entries[1].Balance, 0.001)
}

func TestRecordReturnRefusedBeyondRemainingAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.RecordPurchase(ctx, ownerID, RecordInput{
		SupplierID: supplierID, Amount: 1000,
	})
	require.NoError(t, err)

	_, err = f.svc.RecordReturn(ctx, ownerID, p.ID, ReturnInput{Amount: 600})
	require.NoError(t, err)

	_, err = f.svc.RecordReturn(ctx, ownerID, p.ID, ReturnInput{Amount: 600})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.InDelta(t, 400, f.ledgers.parties[ledger.PartySupplier][supplierID].balance, 0.001)
}

func TestRecordReturnRefusedWhenStockMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.RecordPurchase(ctx, ownerID, RecordInput{
		SupplierID: supplierID,
		Items:      []ItemInput{{ProductID: 1, Quantity: 5, UnitCost: 100}},
	})
	require.NoError(t, err)
	f.stock.products[1].Stock = 2

	_, err = f.svc.RecordReturn(ctx, ownerID, p.ID, ReturnInput{
		Amount: 300,
		Items:  []ItemInput{{ProductID: 1, Quantity: 3}},
	})
	var stockErr *shared.StockError
	require.ErrorAs(t, err, &stockErr)
	require.InDelta(t, 2, f.stock.products[1].Stock, 0.001)
}

func TestRecordPurchaseUnknownSupplierFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RecordPurchase(context.Background(), ownerID, RecordInput{
		SupplierID: 404, Amount: 100,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
