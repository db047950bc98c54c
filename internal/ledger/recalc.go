package ledger

import (
	"context"
	"math"

	"github.com/tillbook/tillbook/internal/platform/db"
)

// Recalculator owns the two party-balance maintenance strategies.
//
// Recalculate is the authoritative path: it refolds the whole statement in
// canonical order, repairs drifted running-balance snapshots, and writes the
// final figure to the cached party balance. Increment is the fast path: a
// single atomic delta on the cached balance, used inside high-frequency
// mutations where refolding every statement would dominate the transaction.
// Snapshots touched only by Increment may go stale until the next full
// recalculation; the integrity job closes that gap.
type Recalculator struct {
	repo Repository
}

// NewRecalculator wires the engine to its persistence layer.
func NewRecalculator(repo Repository) *Recalculator {
	return &Recalculator{repo: repo}
}

// Recalculate refolds the party's statement and returns the final balance.
// Only entries whose stored snapshot drifted beyond BalanceEpsilon are
// rewritten, so a statement that is already consistent costs zero writes.
func (r *Recalculator) Recalculate(ctx context.Context, q db.Querier, kind PartyKind, partyID, ownerID int64) (float64, error) {
	entries, err := r.repo.ListEntries(ctx, q, kind, partyID, ownerID)
	if err != nil {
		return 0, err
	}

	var running float64
	var updates []BalanceUpdate
	for _, e := range entries {
		running += kind.SignedAmount(e.Debit, e.Credit)
		if math.Abs(e.Balance-running) > BalanceEpsilon {
			updates = append(updates, BalanceUpdate{EntryID: e.ID, Balance: running})
		}
	}

	if len(updates) > 0 {
		if err := r.repo.UpdateEntryBalances(ctx, q, kind, updates); err != nil {
			return 0, err
		}
	}
	if err := r.repo.SetPartyBalance(ctx, q, kind, partyID, ownerID, running); err != nil {
		return 0, err
	}
	return running, nil
}

// Increment applies a signed delta to the cached party balance without
// touching entry snapshots. The delta must already carry the kind's sign
// convention (use PartyKind.SignedAmount).
func (r *Recalculator) Increment(ctx context.Context, q db.Querier, kind PartyKind, partyID, ownerID int64, delta float64) error {
	return r.repo.AddPartyBalance(ctx, q, kind, partyID, ownerID, delta)
}
