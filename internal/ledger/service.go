package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// AppendInput describes a new statement line.
type AppendInput struct {
	Kind        PartyKind
	PartyID     int64
	Date        time.Time
	RefType     RefType
	RefID       *int64
	RefNo       string
	Description string
	Debit       float64
	Credit      float64
}

// EditInput carries the mutable fields of an existing entry.
type EditInput struct {
	Date        time.Time
	RefType     RefType
	RefNo       string
	Description string
	Debit       float64
	Credit      float64
}

// Service exposes the signed-ledger operations. Every mutation runs inside the
// unit-of-work manager and ends with a full recalculation, so snapshots and
// the cached party balance are consistent the moment the transaction commits.
type Service struct {
	repo   Repository
	uow    *db.Manager
	recalc *Recalculator
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the ledger service.
func NewService(repo Repository, uow *db.Manager, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		uow:    uow,
		recalc: NewRecalculator(repo),
		logger: logger,
		now:    time.Now,
	}
}

// Recalculator exposes the balance engine for modules that post entries
// inside their own transactions.
func (s *Service) Recalculator() *Recalculator { return s.recalc }

func validateAmounts(kind PartyKind, refType RefType, debit, credit float64) error {
	if !kind.Valid() {
		return shared.Validationf("unknown ledger kind %q", kind)
	}
	if !refType.ValidFor(kind) {
		return shared.Validationf("reference type %q not valid for %s ledger", refType, kind)
	}
	if debit < 0 || credit < 0 {
		return shared.Validationf("debit and credit must be non-negative")
	}
	if debit == 0 && credit == 0 {
		return shared.Validationf("entry must carry a debit or a credit")
	}
	return nil
}

// Append inserts a new entry and recalculates the party's statement. The entry
// is written with a provisional zero balance; the recalculation in the same
// transaction assigns the real running figure before anything can observe it.
func (s *Service) Append(ctx context.Context, ownerID int64, in AppendInput) (*Entry, error) {
	if err := validateAmounts(in.Kind, in.RefType, in.Debit, in.Credit); err != nil {
		return nil, err
	}
	if in.PartyID <= 0 {
		return nil, shared.Validationf("party id is required")
	}
	if in.Date.IsZero() {
		in.Date = s.now()
	}

	e := &Entry{
		Kind:        in.Kind,
		PartyID:     in.PartyID,
		OwnerID:     ownerID,
		Date:        in.Date,
		RefType:     in.RefType,
		RefID:       in.RefID,
		RefNo:       in.RefNo,
		Description: in.Description,
		Debit:       in.Debit,
		Credit:      in.Credit,
		Balance:     0,
	}

	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		if _, err := s.repo.InsertEntry(ctx, q, e); err != nil {
			return err
		}
		final, err := s.recalc.Recalculate(ctx, q, in.Kind, in.PartyID, ownerID)
		if err != nil {
			return err
		}
		s.logger.Debug("ledger entry appended",
			"kind", in.Kind, "party_id", in.PartyID, "entry_id", e.ID, "balance", final)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Return the entry with its settled snapshot.
	return s.repo.GetEntry(ctx, nil, in.Kind, e.ID)
}

// Statement returns the party's entries in canonical order.
func (s *Service) Statement(ctx context.Context, ownerID int64, kind PartyKind, partyID int64) ([]Entry, error) {
	if !kind.Valid() {
		return nil, shared.Validationf("unknown ledger kind %q", kind)
	}
	return s.repo.ListEntries(ctx, nil, kind, partyID, ownerID)
}

// Balance returns the cached party balance.
func (s *Service) Balance(ctx context.Context, ownerID int64, kind PartyKind, partyID int64) (float64, error) {
	if !kind.Valid() {
		return 0, shared.Validationf("unknown ledger kind %q", kind)
	}
	return s.repo.PartyBalance(ctx, nil, kind, partyID, ownerID)
}

// Edit rewrites an entry's fields and recalculates the statement. Editing an
// entry belonging to another owner is refused outright.
func (s *Service) Edit(ctx context.Context, ownerID int64, kind PartyKind, id int64, in EditInput) (*Entry, error) {
	if err := validateAmounts(kind, in.RefType, in.Debit, in.Credit); err != nil {
		return nil, err
	}

	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		e, err := s.repo.GetEntry(ctx, q, kind, id)
		if err != nil {
			return err
		}
		if e.OwnerID != ownerID {
			return shared.ErrForbidden
		}

		e.Date = in.Date
		e.RefType = in.RefType
		e.RefNo = in.RefNo
		e.Description = in.Description
		e.Debit = in.Debit
		e.Credit = in.Credit
		if err := s.repo.UpdateEntry(ctx, q, e); err != nil {
			return err
		}
		_, err = s.recalc.Recalculate(ctx, q, kind, e.PartyID, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetEntry(ctx, nil, kind, id)
}

// Delete removes an entry and recalculates the statement behind it.
func (s *Service) Delete(ctx context.Context, ownerID int64, kind PartyKind, id int64) error {
	if !kind.Valid() {
		return shared.Validationf("unknown ledger kind %q", kind)
	}
	return s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		e, err := s.repo.GetEntry(ctx, q, kind, id)
		if err != nil {
			return err
		}
		if e.OwnerID != ownerID {
			return shared.ErrForbidden
		}
		if err := s.repo.DeleteEntry(ctx, q, kind, id); err != nil {
			return err
		}
		_, err = s.recalc.Recalculate(ctx, q, kind, e.PartyID, ownerID)
		return err
	})
}

// RecalculateParty forces a full refold of one party's statement and returns
// the settled balance. Exposed for repair tooling and the integrity job.
func (s *Service) RecalculateParty(ctx context.Context, ownerID int64, kind PartyKind, partyID int64) (float64, error) {
	if !kind.Valid() {
		return 0, shared.Validationf("unknown ledger kind %q", kind)
	}
	var final float64
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		var err error
		final, err = s.recalc.Recalculate(ctx, q, kind, partyID, ownerID)
		return err
	})
	return final, err
}
