package suppliers

import (
	"context"
	"log/slog"
	"time"

	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Service maintains the supplier master. Like customers, balance movements go
// through opening-balance ledger entries and recalculation; the sign convention
// differs, a credit raises the payable.
type Service struct {
	repo    Repository
	ledgers ledger.Repository
	recalc  *ledger.Recalculator
	uow     *db.Manager
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the supplier service.
func NewService(repo Repository, ledgers ledger.Repository, uow *db.Manager, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		ledgers: ledgers,
		recalc:  ledger.NewRecalculator(ledgers),
		uow:     uow,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context, ownerID int64, search string, page shared.Page) ([]Supplier, error) {
	return s.repo.List(ctx, nil, ownerID, search, page.Clamp(200))
}

func (s *Service) Get(ctx context.Context, ownerID, id int64) (*Supplier, error) {
	return s.repo.Get(ctx, nil, ownerID, id)
}

// Create inserts the supplier and, when an opening balance is given, posts it
// as the first statement entry.
func (s *Service) Create(ctx context.Context, ownerID int64, in Input) (*Supplier, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	sup := &Supplier{
		OwnerID: ownerID,
		Name:    in.Name,
		Phone:   in.Phone,
		Email:   in.Email,
		Address: in.Address,
		GSTIN:   in.GSTIN,
		State:   LifecycleActive,
	}
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		if err := s.repo.Insert(ctx, q, sup); err != nil {
			return err
		}
		if in.OpeningBalance == 0 {
			return nil
		}
		return s.postAdjustment(ctx, q, sup, in.OpeningBalance, "Opening balance")
	})
	if err != nil {
		return nil, err
	}
	sup.Balance = in.OpeningBalance
	s.logger.Info("supplier created", slog.Int64("supplier_id", sup.ID), slog.Int64("owner_id", ownerID))
	return sup, nil
}

func (s *Service) Update(ctx context.Context, ownerID, id int64, in Input) (*Supplier, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	sup, err := s.repo.Get(ctx, nil, ownerID, id)
	if err != nil {
		return nil, err
	}
	sup.Name = in.Name
	sup.Phone = in.Phone
	sup.Email = in.Email
	sup.Address = in.Address
	sup.GSTIN = in.GSTIN
	if err := s.repo.Update(ctx, nil, sup); err != nil {
		return nil, err
	}
	return sup, nil
}

// AdjustBalance posts a signed opening-balance entry and recomputes the fold.
// Positive amounts raise the payable, negative ones record an advance paid.
func (s *Service) AdjustBalance(ctx context.Context, ownerID, id int64, in AdjustInput) (*Supplier, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	var adjusted *Supplier
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		sup, err := s.repo.Get(ctx, q, ownerID, id)
		if err != nil {
			return err
		}
		note := in.Note
		if note == "" {
			note = "Balance adjustment"
		}
		if err := s.postAdjustment(ctx, q, sup, in.Amount, note); err != nil {
			return err
		}
		sup.Balance, err = s.ledgers.PartyBalance(ctx, q, ledger.PartySupplier, id, ownerID)
		if err != nil {
			return err
		}
		adjusted = sup
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("supplier balance adjusted",
		slog.Int64("supplier_id", id), slog.Float64("amount", in.Amount))
	return adjusted, nil
}

func (s *Service) postAdjustment(ctx context.Context, q db.Querier, sup *Supplier, amount float64, note string) error {
	credit, debit := amount, 0.0
	if amount < 0 {
		credit, debit = 0, -amount
	}
	entry := &ledger.Entry{
		Kind:        ledger.PartySupplier,
		PartyID:     sup.ID,
		OwnerID:     sup.OwnerID,
		Date:        s.now(),
		RefType:     ledger.RefOpeningBalance,
		Description: note,
		Debit:       debit,
		Credit:      credit,
	}
	if _, err := s.ledgers.InsertEntry(ctx, q, entry); err != nil {
		return err
	}
	_, err := s.recalc.Recalculate(ctx, q, ledger.PartySupplier, sup.ID, sup.OwnerID)
	return err
}

// Delete hides the supplier, keeping row, ledger and balance for Restore.
func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	sup, err := s.repo.Get(ctx, nil, ownerID, id)
	if err != nil {
		return err
	}
	if sup.State == LifecycleDeleted {
		return shared.Validationf("supplier %d is already deleted", id)
	}
	return s.repo.SetLifecycle(ctx, nil, ownerID, id, LifecycleDeleted)
}

// Restore brings a deleted supplier back.
func (s *Service) Restore(ctx context.Context, ownerID, id int64) (*Supplier, error) {
	sup, err := s.repo.Get(ctx, nil, ownerID, id)
	if err != nil {
		return nil, err
	}
	if sup.State != LifecycleDeleted {
		return nil, shared.Validationf("supplier %d is not deleted", id)
	}
	if err := s.repo.SetLifecycle(ctx, nil, ownerID, id, LifecycleActive); err != nil {
		return nil, err
	}
	sup.State = LifecycleActive
	return sup, nil
}
