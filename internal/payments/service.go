package payments

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// Service records customer and supplier payments.
//
// Payment posting is the high-frequency path, so it takes the fast balance
// strategy: the signed entry lands with a provisional snapshot and the cached
// party balance moves by an atomic increment. Snapshots catch up on the next
// full recalculation; the cached balance itself is never stale.
type Service struct {
	repo    Repository
	ledgers ledger.Repository
	recalc  *ledger.Recalculator
	uow     *db.Manager
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the payments service.
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

// RecordCustomerPayment books money received from a customer: a payment row,
// a credit on the customer's statement, and an atomic drop in the receivable.
func (s *Service) RecordCustomerPayment(ctx context.Context, ownerID int64, in RecordInput) (*Payment, error) {
	return s.record(ctx, ownerID, ledger.PartyCustomer, in)
}

// RecordSupplierPayment books money paid to a supplier: a payment row, a debit
// on the supplier's statement, and an atomic drop in the payable.
func (s *Service) RecordSupplierPayment(ctx context.Context, ownerID int64, in RecordInput) (*Payment, error) {
	return s.record(ctx, ownerID, ledger.PartySupplier, in)
}

func (s *Service) record(ctx context.Context, ownerID int64, kind ledger.PartyKind, in RecordInput) (*Payment, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	if !in.Method.Valid() {
		return nil, shared.Validationf("unknown payment method %q", in.Method)
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	// The reference doubles as an idempotency key: callers that retry send the
	// same one and the unique constraint rejects the replay.
	ref := in.Reference
	if ref == "" {
		ref = uuid.NewString()
	}

	p := &Payment{
		OwnerID:   ownerID,
		Kind:      kind,
		PartyID:   in.PartyID,
		InvoiceID: in.InvoiceID,
		Reference: ref,
		Date:      date,
		Amount:    in.Amount,
		Method:    in.Method,
		Note:      in.Note,
	}

	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		if err := s.repo.Insert(ctx, q, p); err != nil {
			return err
		}
		debit, credit := paymentSides(kind, in.Amount)
		entry := &ledger.Entry{
			Kind:        kind,
			PartyID:     in.PartyID,
			OwnerID:     ownerID,
			Date:        date,
			RefType:     ledger.RefPayment,
			RefID:       &p.ID,
			Description: paymentDescription(in),
			Debit:       debit,
			Credit:      credit,
		}
		if _, err := s.ledgers.InsertEntry(ctx, q, entry); err != nil {
			return err
		}
		return s.recalc.Increment(ctx, q, kind, in.PartyID, ownerID,
			kind.SignedAmount(debit, credit))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment recorded",
		slog.String("kind", string(kind)), slog.Int64("party_id", in.PartyID),
		slog.Int64("payment_id", p.ID), slog.Float64("amount", in.Amount))
	return p, nil
}

// paymentSides places the amount on the settling side of each ledger: credit
// for customers (receivable shrinks), debit for suppliers (payable shrinks).
func paymentSides(kind ledger.PartyKind, amount float64) (debit, credit float64) {
	if kind == ledger.PartySupplier {
		return amount, 0
	}
	return 0, amount
}

func paymentDescription(in RecordInput) string {
	if in.Note != "" {
		return in.Note
	}
	return "Payment (" + string(in.Method) + ")"
}

// Reverse cancels a payment: the row is flagged, a counter-entry lands on the
// statement, and the cached balance moves back. The party's snapshots are then
// settled with a full recalculation since reversals are rare.
func (s *Service) Reverse(ctx context.Context, ownerID, id int64) (*Payment, error) {
	var reversed *Payment
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		p, err := s.repo.Get(ctx, q, ownerID, id)
		if err != nil {
			return err
		}
		if p.Reversed {
			return shared.Validationf("payment %d is already reversed", id)
		}
		if err := s.repo.MarkReversed(ctx, q, ownerID, id); err != nil {
			return err
		}
		// Counter-entry swaps the sides of the original.
		debit, credit := paymentSides(p.Kind, p.Amount)
		entry := &ledger.Entry{
			Kind:        p.Kind,
			PartyID:     p.PartyID,
			OwnerID:     ownerID,
			Date:        s.now(),
			RefType:     ledger.RefReversal,
			RefID:       &p.ID,
			Description: "Reversal of payment",
			Debit:       credit,
			Credit:      debit,
		}
		if _, err := s.ledgers.InsertEntry(ctx, q, entry); err != nil {
			return err
		}
		if _, err := s.recalc.Recalculate(ctx, q, p.Kind, p.PartyID, ownerID); err != nil {
			return err
		}
		p.Reversed = true
		reversed = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment reversed", slog.Int64("payment_id", id), slog.Int64("owner_id", ownerID))
	return reversed, nil
}

// ListByParty returns a party's payments, newest first.
func (s *Service) ListByParty(ctx context.Context, ownerID int64, kind ledger.PartyKind, partyID int64) ([]Payment, error) {
	if !kind.Valid() {
		return nil, shared.Validationf("unknown ledger kind %q", kind)
	}
	return s.repo.ListByParty(ctx, nil, ownerID, kind, partyID)
}

// ListByDate returns all payments on a calendar day, for the daybook.
func (s *Service) ListByDate(ctx context.Context, ownerID int64, day time.Time) ([]Payment, error) {
	return s.repo.ListByDate(ctx, nil, ownerID, day)
}
