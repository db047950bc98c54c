package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"

	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/platform/db"
)

// PartyRef addresses one party row during an integrity scan.
type PartyRef struct {
	ID      int64
	OwnerID int64
	Balance float64
}

// PartySource lists parties of one ledger kind.
type PartySource interface {
	Parties(ctx context.Context, kind ledger.PartyKind) ([]PartyRef, error)
}

// NewPartySource returns a PartySource over the customers and suppliers tables.
func NewPartySource(store db.Store) PartySource {
	return &pgPartySource{store: store}
}

type pgPartySource struct {
	store db.Store
}

func (s *pgPartySource) Parties(ctx context.Context, kind ledger.PartyKind) ([]PartyRef, error) {
	table := "customers"
	if kind == ledger.PartySupplier {
		table = "suppliers"
	}
	rows, err := s.store.Query(ctx, `SELECT id, owner_id, balance FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("jobs: list %s: %w", table, err)
	}
	defer rows.Close()
	var out []PartyRef
	for rows.Next() {
		var p PartyRef
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Balance); err != nil {
			return nil, fmt.Errorf("jobs: scan party: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LedgerIntegrityJob compares each party's cached balance against the fold of
// its statement. The increment fast path leaves snapshots stale by design; this
// job is the backstop that finds real drift and, when asked, repairs it.
type LedgerIntegrityJob struct {
	parties PartySource
	ledgers ledger.Repository
	recalc  *ledger.Recalculator
	uow     *db.Manager
	logger  *slog.Logger
}

// NewLedgerIntegrityJob wires the integrity scan.
func NewLedgerIntegrityJob(parties PartySource, ledgers ledger.Repository, uow *db.Manager, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		parties: parties,
		ledgers: ledgers,
		recalc:  ledger.NewRecalculator(ledgers),
		uow:     uow,
		logger:  logger,
	}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	kinds := []ledger.PartyKind{ledger.PartyCustomer, ledger.PartySupplier}
	if payload.Kind != "" {
		kind := ledger.PartyKind(payload.Kind)
		if !kind.Valid() {
			return asynq.SkipRetry
		}
		kinds = []ledger.PartyKind{kind}
	}

	var scanned, drifted, repaired int
	for _, kind := range kinds {
		parties, err := j.parties.Parties(ctx, kind)
		if err != nil {
			return err
		}
		for _, p := range parties {
			scanned++
			drift, err := j.checkParty(ctx, kind, p)
			if err != nil {
				return err
			}
			if !drift {
				continue
			}
			drifted++
			if !payload.Repair {
				continue
			}
			err = j.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
				_, err := j.recalc.Recalculate(ctx, q, kind, p.ID, p.OwnerID)
				return err
			})
			if err != nil {
				return err
			}
			repaired++
		}
	}

	j.logger.Info("ledger integrity scan finished",
		slog.Int("scanned", scanned), slog.Int("drifted", drifted), slog.Int("repaired", repaired))
	return nil
}

func (j *LedgerIntegrityJob) checkParty(ctx context.Context, kind ledger.PartyKind, p PartyRef) (bool, error) {
	entries, err := j.ledgers.ListEntries(ctx, nil, kind, p.ID, p.OwnerID)
	if err != nil {
		return false, err
	}
	var fold float64
	snapshotDrift := false
	for _, e := range entries {
		fold += kind.SignedAmount(e.Debit, e.Credit)
		if math.Abs(e.Balance-fold) > ledger.BalanceEpsilon {
			snapshotDrift = true
		}
	}
	cachedDrift := math.Abs(fold-p.Balance) > ledger.BalanceEpsilon
	if cachedDrift {
		j.logger.Warn("cached balance drifted from statement fold",
			slog.String("kind", string(kind)), slog.Int64("party_id", p.ID),
			slog.Float64("cached", p.Balance), slog.Float64("fold", fold))
	}
	return cachedDrift || snapshotDrift, nil
}
