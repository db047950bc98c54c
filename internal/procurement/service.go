package procurement

import (
	"context"
	"log/slog"
	"time"

	"github.com/tillbook/tillbook/internal/inventory"
	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// StockPort is the slice of the inventory service procurement depends on.
type StockPort interface {
	ValidateAvailability(ctx context.Context, q db.Querier, ownerID int64, reqs []inventory.Requirement) error
	Deduct(ctx context.Context, q db.Querier, ownerID int64, reqs []inventory.Requirement) error
	Restore(ctx context.Context, q db.Querier, ownerID int64, reqs []inventory.Requirement) error
}

// Service records purchases against suppliers and purchase returns.
//
// Recording follows the payment hot path: the signed entry lands with a
// provisional snapshot and the cached payable moves by an atomic increment.
// Returns are rare, so they settle the snapshots with a full recalculation.
type Service struct {
	repo    Repository
	stock   StockPort
	ledgers ledger.Repository
	recalc  *ledger.Recalculator
	uow     *db.Manager
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the procurement service.
func NewService(repo Repository, stock StockPort, ledgers ledger.Repository, uow *db.Manager, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		stock:   stock,
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

// RecordPurchase books goods received: the purchase row and its items, stock
// additions, a credit on the supplier's statement, and an atomic rise of the
// payable.
func (s *Service) RecordPurchase(ctx context.Context, ownerID int64, in RecordInput) (*Purchase, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	amount := in.Amount
	if len(in.Items) > 0 {
		var lineTotal float64
		for _, item := range in.Items {
			lineTotal += item.Quantity * item.UnitCost
		}
		if amount == 0 {
			amount = lineTotal
		}
	}
	if amount <= 0 {
		return nil, shared.Validationf("purchase amount must be positive")
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	p := &Purchase{
		OwnerID:    ownerID,
		SupplierID: in.SupplierID,
		BillNo:     in.BillNo,
		Date:       date,
		Amount:     amount,
		Note:       in.Note,
		Items:      purchaseItems(in.Items),
	}

	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		if err := s.repo.Insert(ctx, q, p); err != nil {
			return err
		}
		if reqs := requirements(in.Items); len(reqs) > 0 {
			if err := s.stock.Restore(ctx, q, ownerID, reqs); err != nil {
				return err
			}
		}
		entry := &ledger.Entry{
			Kind:        ledger.PartySupplier,
			PartyID:     in.SupplierID,
			OwnerID:     ownerID,
			Date:        date,
			RefType:     ledger.RefPurchase,
			RefID:       &p.ID,
			RefNo:       in.BillNo,
			Description: purchaseDescription(in),
			Credit:      amount,
		}
		if _, err := s.ledgers.InsertEntry(ctx, q, entry); err != nil {
			return err
		}
		return s.recalc.Increment(ctx, q, ledger.PartySupplier, in.SupplierID, ownerID,
			ledger.PartySupplier.SignedAmount(0, amount))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase recorded",
		slog.Int64("supplier_id", in.SupplierID), slog.Int64("purchase_id", p.ID),
		slog.Float64("amount", amount))
	return p, nil
}

// RecordReturn sends goods back to the supplier: stock leaves, a debit lands on
// the supplier's statement, and the payable is recomputed in full.
func (s *Service) RecordReturn(ctx context.Context, ownerID, purchaseID int64, in ReturnInput) (*Purchase, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	var returned *Purchase
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		p, err := s.repo.Get(ctx, q, ownerID, purchaseID)
		if err != nil {
			return err
		}
		if in.Amount > p.Amount-p.ReturnedAmount+0.01 {
			return shared.Validationf("return %.2f exceeds remaining purchase amount %.2f",
				in.Amount, p.Amount-p.ReturnedAmount)
		}
		if err := s.repo.AddReturned(ctx, q, ownerID, purchaseID, in.Amount); err != nil {
			return err
		}
		if reqs := requirements(in.Items); len(reqs) > 0 {
			if err := s.stock.ValidateAvailability(ctx, q, ownerID, reqs); err != nil {
				return err
			}
			if err := s.stock.Deduct(ctx, q, ownerID, reqs); err != nil {
				return err
			}
		}
		entry := &ledger.Entry{
			Kind:        ledger.PartySupplier,
			PartyID:     p.SupplierID,
			OwnerID:     ownerID,
			Date:        s.now(),
			RefType:     ledger.RefReturn,
			RefID:       &p.ID,
			RefNo:       p.BillNo,
			Description: returnDescription(in),
			Debit:       in.Amount,
		}
		if _, err := s.ledgers.InsertEntry(ctx, q, entry); err != nil {
			return err
		}
		if _, err := s.recalc.Recalculate(ctx, q, ledger.PartySupplier, p.SupplierID, ownerID); err != nil {
			return err
		}
		p.ReturnedAmount += in.Amount
		returned = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("purchase return recorded",
		slog.Int64("purchase_id", purchaseID), slog.Float64("amount", in.Amount))
	return returned, nil
}

// Get returns one purchase with its items.
func (s *Service) Get(ctx context.Context, ownerID, id int64) (*Purchase, error) {
	return s.repo.Get(ctx, nil, ownerID, id)
}

// ListBySupplier returns a supplier's purchases, newest first.
func (s *Service) ListBySupplier(ctx context.Context, ownerID, supplierID int64, page shared.Page) ([]Purchase, error) {
	return s.repo.ListBySupplier(ctx, nil, ownerID, supplierID, page.Clamp(200))
}

func purchaseItems(items []ItemInput) []PurchaseItem {
	out := make([]PurchaseItem, 0, len(items))
	for _, item := range items {
		out = append(out, PurchaseItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
		})
	}
	return out
}

func requirements(items []ItemInput) []inventory.Requirement {
	out := make([]inventory.Requirement, 0, len(items))
	for _, item := range items {
		out = append(out, inventory.Requirement{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

func purchaseDescription(in RecordInput) string {
	if in.Note != "" {
		return in.Note
	}
	if in.BillNo != "" {
		return "Purchase against bill " + in.BillNo
	}
	return "Purchase"
}

func returnDescription(in ReturnInput) string {
	if in.Note != "" {
		return in.Note
	}
	return "Purchase return"
}
