package customers

import (
	"context"
	"log/slog"
	"time"

	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Service maintains the customer master. Opening balances and later manual
// adjustments are never written to the balance column directly; they are posted
// as opening-balance ledger entries and the recalculator settles the cache, so
// the cached figure always has statement rows behind it.
type Service struct {
	repo    Repository
	ledgers ledger.Repository
	recalc  *ledger.Recalculator
	uow     *db.Manager
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the customer service.
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

func (s *Service) List(ctx context.Context, ownerID int64, search string, page shared.Page) ([]Customer, error) {
	return s.repo.List(ctx, nil, ownerID, search, page.Clamp(200))
}

func (s *Service) Get(ctx context.Context, ownerID, id int64) (*Customer, error) {
	return s.repo.Get(ctx, nil, ownerID, id)
}

// Create inserts the customer and, when an opening balance is given, posts it
// as the first statement entry.
func (s *Service) Create(ctx context.Context, ownerID int64, in Input) (*Customer, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	c := &Customer{
		OwnerID: ownerID,
		Name:    in.Name,
		Phone:   in.Phone,
		Email:   in.Email,
		Address: in.Address,
		GSTIN:   in.GSTIN,
		State:   LifecycleActive,
	}
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		if err := s.repo.Insert(ctx, q, c); err != nil {
			return err
		}
		if in.OpeningBalance == 0 {
			return nil
		}
		return s.postAdjustment(ctx, q, c, in.OpeningBalance, "Opening balance")
	})
	if err != nil {
		return nil, err
	}
	c.Balance = in.OpeningBalance
	s.logger.Info("customer created", slog.Int64("customer_id", c.ID), slog.Int64("owner_id", ownerID))
	return c, nil
}

func (s *Service) Update(ctx context.Context, ownerID, id int64, in Input) (*Customer, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	c, err := s.repo.Get(ctx, nil, ownerID, id)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Phone = in.Phone
	c.Email = in.Email
	c.Address = in.Address
	c.GSTIN = in.GSTIN
	if err := s.repo.Update(ctx, nil, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AdjustBalance posts a signed opening-balance entry and recomputes the fold.
// Positive amounts raise the receivable, negative ones record an advance.
func (s *Service) AdjustBalance(ctx context.Context, ownerID, id int64, in AdjustInput) (*Customer, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	var adjusted *Customer
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		c, err := s.repo.Get(ctx, q, ownerID, id)
		if err != nil {
			return err
		}
		note := in.Note
		if note == "" {
			note = "Balance adjustment"
		}
		if err := s.postAdjustment(ctx, q, c, in.Amount, note); err != nil {
			return err
		}
		c.Balance, err = s.ledgers.PartyBalance(ctx, q, ledger.PartyCustomer, id, ownerID)
		if err != nil {
			return err
		}
		adjusted = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("customer balance adjusted",
		slog.Int64("customer_id", id), slog.Float64("amount", in.Amount))
	return adjusted, nil
}

func (s *Service) postAdjustment(ctx context.Context, q db.Querier, c *Customer, amount float64, note string) error {
	debit, credit := amount, 0.0
	if amount < 0 {
		debit, credit = 0, -amount
	}
	entry := &ledger.Entry{
		Kind:        ledger.PartyCustomer,
		PartyID:     c.ID,
		OwnerID:     c.OwnerID,
		Date:        s.now(),
		RefType:     ledger.RefOpeningBalance,
		Description: note,
		Debit:       debit,
		Credit:      credit,
	}
	if _, err := s.ledgers.InsertEntry(ctx, q, entry); err != nil {
		return err
	}
	_, err := s.recalc.Recalculate(ctx, q, ledger.PartyCustomer, c.ID, c.OwnerID)
	return err
}

// Delete hides the customer. The row, its ledger and its balance survive for
// Restore.
func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	c, err := s.repo.Get(ctx, nil, ownerID, id)
	if err != nil {
		return err
	}
	if c.State == LifecycleDeleted {
		return shared.Validationf("customer %d is already deleted", id)
	}
	return s.repo.SetLifecycle(ctx, nil, ownerID, id, LifecycleDeleted)
}

// Restore brings a deleted customer back.
func (s *Service) Restore(ctx context.Context, ownerID, id int64) (*Customer, error) {
	c, err := s.repo.Get(ctx, nil, ownerID, id)
	if err != nil {
		return nil, err
	}
	if c.State != LifecycleDeleted {
		return nil, shared.Validationf("customer %d is not deleted", id)
	}
	if err := s.repo.SetLifecycle(ctx, nil, ownerID, id, LifecycleActive); err != nil {
		return nil, err
	}
	c.State = LifecycleActive
	return c, nil
}
