package suppliers

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

type memRepo struct {
	seq  int64
	rows map[int64]*Supplier
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[int64]*Supplier{}}
}

func (r *memRepo) Insert(_ context.Context, _ db.Querier, s *Supplier) error {
	r.seq++
	s.ID = r.seq
	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *memRepo) Get(_ context.Context, _ db.Querier, ownerID, id int64) (*Supplier, error) {
	s, ok := r.rows[id]
	if !ok || s.OwnerID != ownerID {
		return nil, shared.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) List(_ context.Context, _ db.Querier, ownerID int64, _ string, _ shared.Page) ([]Supplier, error) {
	var out []Supplier
	for _, s := range r.rows {
		if s.OwnerID != ownerID || s.State == LifecycleDeleted {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memRepo) Update(_ context.Context, _ db.Querier, s *Supplier) error {
	cur, ok := r.rows[s.ID]
	if !ok || cur.OwnerID != s.OwnerID {
		return shared.ErrNotFound
	}
	balance := cur.Balance
	*cur = *s
	cur.Balance = balance
	return nil
}

func (r *memRepo) SetLifecycle(_ context.Context, _ db.Querier, ownerID, id int64, state Lifecycle) error {
	s, ok := r.rows[id]
	if !ok || s.OwnerID != ownerID {
		return shared.ErrNotFound
	}
	s.State = state
	return nil
}

// memLedger implements ledger.Repository with party balances backed by memRepo.
type memLedger struct {
	repo    *memRepo
	seq     int64
	clock   time.Time
	entries map[int64]*ledger.Entry
}

func newMemLedger(repo *memRepo) *memLedger {
	return &memLedger{
		repo:    repo,
		clock:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		entries: map[int64]*ledger.Entry{},
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

func (r *memLedger) PartyBalance(_ context.Context, _ db.Querier, _ ledger.PartyKind, partyID, ownerID int64) (float64, error) {
	s, ok := r.repo.rows[partyID]
	if !ok || s.OwnerID != ownerID {
		return 0, shared.ErrNotFound
	}
	return s.Balance, nil
}

func (r *memLedger) SetPartyBalance(_ context.Context, _ db.Querier, _ ledger.PartyKind, partyID, ownerID int64, balance float64) error {
	s, ok := r.repo.rows[partyID]
	if !ok || s.OwnerID != ownerID {
		return shared.ErrNotFound
	}
	s.Balance = balance
	return nil
}

func (r *memLedger) AddPartyBalance(_ context.Context, _ db.Querier, _ ledger.PartyKind, partyID, ownerID int64, delta float64) error {
	s, ok := r.repo.rows[partyID]
	if !ok || s.OwnerID != ownerID {
		return shared.ErrNotFound
	}
	s.Balance += delta
	return nil
}

const ownerID = int64(9)

func newTestService(t *testing.T) (*Service, *memRepo, *memLedger) {
	t.Helper()
	repo := newMemRepo()
	ledgers := newMemLedger(repo)
	logger := slog.New(slog.DiscardHandler)
	uow := db.NewManager(stubStore{}, logger)
	uow.SetCapabilities(db.Capabilities{Transactions: false})
	svc := NewService(repo, ledgers, uow, logger)
	svc.WithNow(func() time.Time { return time.Date(2026, 5, 22, 10, 0, 0, 0, time.UTC) })
	return svc, repo, ledgers
}

func TestCreateWithOpeningBalanceCreditsSupplier(t *testing.T) {
	svc, repo, ledgers := newTestService(t)
	ctx := context.Background()

	sup, err := svc.Create(ctx, ownerID, Input{Name: "Mehta Wholesale", OpeningBalance: 7200})
	require.NoError(t, err)
	require.InDelta(t, 7200, repo.rows[sup.ID].Balance, 0.001)

	// Payable convention: the opening amount lands on the credit side.
	entries, err := ledgers.ListEntries(ctx, nil, ledger.PartySupplier, sup.ID, ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ledger.RefOpeningBalance, entries[0].RefType)
	require.InDelta(t, 7200, entries[0].Credit, 0.001)
	require.InDelta(t, 0, entries[0].Debit, 0.001)
	require.InDelta(t, 7200, entries[0].Balance, 0.001)
}

func TestAdjustBalanceNegativeAmountDebits(t *testing.T) {
	svc, repo, ledgers := newTestService(t)
	ctx := context.Background()

	sup, err := svc.Create(ctx, ownerID, Input{Name: "Mehta Wholesale", OpeningBalance: 5000})
	require.NoError(t, err)

	adjusted, err := svc.AdjustBalance(ctx, ownerID, sup.ID, AdjustInput{Amount: -2000, Note: "Advance paid"})
	require.NoError(t, err)
	require.InDelta(t, 3000, adjusted.Balance, 0.001)
	require.InDelta(t, 3000, repo.rows[sup.ID].Balance, 0.001)

	entries, err := ledgers.ListEntries(ctx, nil, ledger.PartySupplier, sup.ID, ownerID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.InDelta(t, 2000, entries[1].Debit, 0.001)
	require.InDelta(t, 3000, entries[1].Balance, 0.001)
}

func TestDeleteAndRestoreKeepBalance(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sup, err := svc.Create(ctx, ownerID, Input{Name: "Mehta Wholesale", OpeningBalance: 1100})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, ownerID, sup.ID))
	list, err := svc.List(ctx, ownerID, "", shared.Page{})
	require.NoError(t, err)
	require.Empty(t, list)

	restored, err := svc.Restore(ctx, ownerID, sup.ID)
	require.NoError(t, err)
	require.InDelta(t, 1100, restored.Balance, 0.001)

	_, err = svc.Restore(ctx, ownerID, sup.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), ownerID, Input{})
	require.ErrorIs(t, err, shared.ErrValidation)
}
