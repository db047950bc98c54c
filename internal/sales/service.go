package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tillbook/tillbook/internal/inventory"
	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/payments"
	"github.com/tillbook/tillbook/internal/platform/db"
	"github.com/tillbook/tillbook/internal/shared"
)

// StockPort is the slice of the inventory service the sales flow needs.
type StockPort interface {
	Lookup(ctx context.Context, q db.Querier, ownerID int64, ids []int64) (map[int64]*inventory.Product, error)
	ValidateAvailability(ctx context.Context, q db.Querier, ownerID int64, reqs []inventory.Requirement) error
	Deduct(ctx context.Context, q db.Querier, ownerID int64, reqs []inventory.Requirement) error
	Restore(ctx context.Context, q db.Querier, ownerID int64, reqs []inventory.Requirement) error
}

// InvoiceLineInput describes one item being sold. A zero UnitPrice falls back
// to the product's list price; GST always comes from the product.
type InvoiceLineInput struct {
	ProductID   int64   `json:"productId" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	DiscountPct float64 `json:"discountPct" validate:"gte=0,lte=100"`
}

// CreateInvoiceInput groups the fields to create a sale.
type CreateInvoiceInput struct {
	CustomerID    int64              `json:"customerId" validate:"required"`
	Date          time.Time          `json:"date"`
	GSTInclusive  bool               `json:"gstInclusive"`
	PaidAmount    float64            `json:"paidAmount" validate:"gte=0"`
	PaymentMethod payments.Method    `json:"paymentMethod"`
	Lines         []InvoiceLineInput `json:"lines" validate:"required,min=1,dive"`
}

// Service creates and manages sales invoices. A sale touches four ledgers at
// once — the invoice, stock, the customer statement, and optionally a payment —
// so every mutation runs as one unit of work.
type Service struct {
	repo     Repository
	stock    StockPort
	ledgers  ledger.Repository
	recalc   *ledger.Recalculator
	payments payments.Repository
	uow      *db.Manager
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the sales service.
func NewService(repo Repository, stock StockPort, ledgers ledger.Repository, pay payments.Repository, uow *db.Manager, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		stock:    stock,
		ledgers:  ledgers,
		recalc:   ledger.NewRecalculator(ledgers),
		payments: pay,
		uow:      uow,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func requirements(lines []InvoiceLineInput) []inventory.Requirement {
	reqs := make([]inventory.Requirement, 0, len(lines))
	for _, l := range lines {
		reqs = append(reqs, inventory.Requirement{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return reqs
}

func invoiceRequirements(inv *Invoice) []inventory.Requirement {
	reqs := make([]inventory.Requirement, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		reqs = append(reqs, inventory.Requirement{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return reqs
}

// CreateInvoice validates stock before opening the transaction, then inside
// one unit of work writes the invoice, deducts stock, debits the customer's
// statement, books any payment taken at the counter, and recalculates the
// customer balance.
func (s *Service) CreateInvoice(ctx context.Context, ownerID int64, in CreateInvoiceInput) (*Invoice, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	if in.PaidAmount > 0 && !in.PaymentMethod.Valid() {
		return nil, shared.Validationf("payment method required when paid amount is set")
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	ids := make([]int64, 0, len(in.Lines))
	for _, l := range in.Lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.stock.Lookup(ctx, nil, ownerID, ids)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		OwnerID:      ownerID,
		CustomerID:   in.CustomerID,
		Date:         date,
		GSTInclusive: in.GSTInclusive,
		PaidAmount:   in.PaidAmount,
		Lifecycle:    LifecycleActive,
	}
	for _, l := range in.Lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, shared.Validationf("product %d not found", l.ProductID)
		}
		price := l.UnitPrice
		if price == 0 {
			price = p.Price
		}
		discount, tax, total := CalculateLineTotals(l.Quantity, price, l.DiscountPct, p.GSTRate, in.GSTInclusive)
		inv.Lines = append(inv.Lines, InvoiceLine{
			ProductID:      l.ProductID,
			Description:    p.Name,
			Quantity:       l.Quantity,
			UnitPrice:      price,
			DiscountPct:    l.DiscountPct,
			GSTRate:        p.GSTRate,
			DiscountAmount: discount,
			TaxAmount:      tax,
			LineTotal:      total,
		})
		inv.Subtotal += l.Quantity * price
		inv.DiscountTotal += discount
		inv.TaxTotal += tax
		inv.GrandTotal += total
	}
	if in.PaidAmount > inv.GrandTotal+0.01 {
		return nil, shared.Validationf("paid amount %.2f exceeds invoice total %.2f", in.PaidAmount, inv.GrandTotal)
	}
	inv.Status = settledStatus(in.PaidAmount, inv.GrandTotal)

	// Stock is checked before the transaction opens; a doomed sale should
	// fail cheap.
	reqs := requirements(in.Lines)
	if err := s.stock.ValidateAvailability(ctx, nil, ownerID, reqs); err != nil {
		return nil, err
	}

	err = s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		seq, err := s.repo.CountByYear(ctx, q, ownerID, date.Year())
		if err != nil {
			return err
		}
		inv.Number = fmt.Sprintf("INV-%d-%04d", date.Year(), seq+1)

		if err := s.repo.Insert(ctx, q, inv); err != nil {
			return err
		}
		if err := s.stock.Deduct(ctx, q, ownerID, reqs); err != nil {
			return err
		}

		debit := &ledger.Entry{
			Kind:        ledger.PartyCustomer,
			PartyID:     in.CustomerID,
			OwnerID:     ownerID,
			Date:        date,
			RefType:     ledger.RefInvoice,
			RefID:       &inv.ID,
			RefNo:       inv.Number,
			Description: "Sale " + inv.Number,
			Debit:       inv.GrandTotal,
		}
		if _, err := s.ledgers.InsertEntry(ctx, q, debit); err != nil {
			return err
		}

		if in.PaidAmount > 0 {
			payment := &payments.Payment{
				OwnerID:   ownerID,
				Kind:      ledger.PartyCustomer,
				PartyID:   in.CustomerID,
				InvoiceID: &inv.ID,
				Reference: uuid.NewString(),
				Date:      date,
				Amount:    in.PaidAmount,
				Method:    in.PaymentMethod,
				Note:      "Against " + inv.Number,
			}
			if err := s.payments.Insert(ctx, q, payment); err != nil {
				return err
			}
			credit := &ledger.Entry{
				Kind:        ledger.PartyCustomer,
				PartyID:     in.CustomerID,
				OwnerID:     ownerID,
				Date:        date,
				RefType:     ledger.RefPayment,
				RefID:       &payment.ID,
				RefNo:       inv.Number,
				Description: "Payment against " + inv.Number,
				Credit:      in.PaidAmount,
			}
			if _, err := s.ledgers.InsertEntry(ctx, q, credit); err != nil {
				return err
			}
		}

		_, err = s.recalc.Recalculate(ctx, q, ledger.PartyCustomer, in.CustomerID, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		slog.String("number", inv.Number), slog.Int64("customer_id", in.CustomerID),
		slog.Float64("grand_total", inv.GrandTotal), slog.String("status", string(inv.Status)))
	return inv, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, nil, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID int64, page shared.Page) ([]Invoice, error) {
	return s.repo.List(ctx, nil, ownerID, page.Clamp(200))
}

// Void cancels an active sale: stock comes back, and a reversal credit lands
// on the customer's statement so the receivable disappears without erasing
// history. Payments taken against the invoice stay booked; reverse them
// separately if the money went back.
func (s *Service) Void(ctx context.Context, ownerID, id int64) (*Invoice, error) {
	var voided *Invoice
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		inv, err := s.repo.Get(ctx, q, ownerID, id)
		if err != nil {
			return err
		}
		if inv.Lifecycle != LifecycleActive {
			return shared.Validationf("invoice %s is %s, only active invoices can be voided", inv.Number, inv.Lifecycle)
		}
		if err := s.repo.SetLifecycle(ctx, q, ownerID, id, LifecycleVoid); err != nil {
			return err
		}
		if err := s.stock.Restore(ctx, q, ownerID, invoiceRequirements(inv)); err != nil {
			return err
		}
		reversal := &ledger.Entry{
			Kind:        ledger.PartyCustomer,
			PartyID:     inv.CustomerID,
			OwnerID:     ownerID,
			Date:        s.now(),
			RefType:     ledger.RefReversal,
			RefID:       &inv.ID,
			RefNo:       inv.Number,
			Description: "Void of " + inv.Number,
			Credit:      inv.GrandTotal,
		}
		if _, err := s.ledgers.InsertEntry(ctx, q, reversal); err != nil {
			return err
		}
		if _, err := s.recalc.Recalculate(ctx, q, ledger.PartyCustomer, inv.CustomerID, ownerID); err != nil {
			return err
		}
		inv.Lifecycle = LifecycleVoid
		voided = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice voided", slog.String("number", voided.Number), slog.Int64("owner_id", ownerID))
	return voided, nil
}

// Delete hides an invoice and strips its statement entries entirely, as if
// the sale never happened. Stock comes back only when the sale was still
// active; a voided invoice already returned it.
func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	return s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		inv, err := s.repo.Get(ctx, q, ownerID, id)
		if err != nil {
			return err
		}
		if inv.Lifecycle == LifecycleDeleted {
			return shared.Validationf("invoice %s is already deleted", inv.Number)
		}
		wasActive := inv.Lifecycle == LifecycleActive
		if err := s.repo.SetLifecycle(ctx, q, ownerID, id, LifecycleDeleted); err != nil {
			return err
		}
		if wasActive {
			if err := s.stock.Restore(ctx, q, ownerID, invoiceRequirements(inv)); err != nil {
				return err
			}
		}
		if err := s.ledgers.DeleteEntriesByRef(ctx, q, ledger.PartyCustomer, ledger.RefInvoice, inv.ID); err != nil {
			return err
		}
		if err := s.ledgers.DeleteEntriesByRef(ctx, q, ledger.PartyCustomer, ledger.RefReversal, inv.ID); err != nil {
			return err
		}
		_, err = s.recalc.Recalculate(ctx, q, ledger.PartyCustomer, inv.CustomerID, ownerID)
		return err
	})
}

// Restore brings a deleted invoice back as an active sale. Stock must still
// be available; the statement debit is re-posted and the balance settled.
func (s *Service) Restore(ctx context.Context, ownerID, id int64) (*Invoice, error) {
	var restored *Invoice
	err := s.uow.Run(ctx, func(ctx context.Context, q db.Querier) error {
		inv, err := s.repo.Get(ctx, q, ownerID, id)
		if err != nil {
			return err
		}
		if inv.Lifecycle != LifecycleDeleted {
			return shared.Validationf("invoice %s is not deleted", inv.Number)
		}
		reqs := invoiceRequirements(inv)
		if err := s.stock.ValidateAvailability(ctx, q, ownerID, reqs); err != nil {
			return err
		}
		if err := s.repo.SetLifecycle(ctx, q, ownerID, id, LifecycleActive); err != nil {
			return err
		}
		if err := s.stock.Deduct(ctx, q, ownerID, reqs); err != nil {
			return err
		}
		debit := &ledger.Entry{
			Kind:        ledger.PartyCustomer,
			PartyID:     inv.CustomerID,
			OwnerID:     ownerID,
			Date:        inv.Date,
			RefType:     ledger.RefInvoice,
			RefID:       &inv.ID,
			RefNo:       inv.Number,
			Description: "Sale " + inv.Number,
			Debit:       inv.GrandTotal,
		}
		if _, err := s.ledgers.InsertEntry(ctx, q, debit); err != nil {
			return err
		}
		if _, err := s.recalc.Recalculate(ctx, q, ledger.PartyCustomer, inv.CustomerID, ownerID); err != nil {
			return err
		}
		inv.Lifecycle = LifecycleActive
		restored = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice restored", slog.String("number", restored.Number), slog.Int64("owner_id", ownerID))
	return restored, nil
}

// Daybook summarises one calendar day: every active sale and every payment.
type Daybook struct {
	Date          string             `json:"date"`
	Invoices      []Invoice          `json:"invoices"`
	Payments      []payments.Payment `json:"payments"`
	SalesTotal    float64            `json:"salesTotal"`
	ReceivedTotal float64            `json:"receivedTotal"`
	PaidOutTotal  float64            `json:"paidOutTotal"`
}

// DaybookFor collects the day's trading activity.
func (s *Service) DaybookFor(ctx context.Context, ownerID int64, day time.Time) (*Daybook, error) {
	invoices, err := s.repo.ListByDate(ctx, nil, ownerID, day)
	if err != nil {
		return nil, err
	}
	pays, err := s.payments.ListByDate(ctx, nil, ownerID, day)
	if err != nil {
		return nil, err
	}

	book := &Daybook{
		Date:     day.Format("2006-01-02"),
		Invoices: invoices,
		Payments: pays,
	}
	for _, inv := range invoices {
		book.SalesTotal += inv.GrandTotal
	}
	for _, p := range pays {
		if p.Reversed {
			continue
		}
		if p.Kind == ledger.PartyCustomer {
			book.ReceivedTotal += p.Amount
		} else {
			book.PaidOutTotal += p.Amount
		}
	}
	return book, nil
}
