package ledger

import (
	"math"
	"time"
)

// PartyKind selects which signed ledger an operation targets.
type PartyKind string

const (
	PartyCustomer PartyKind = "customer"
	PartySupplier PartyKind = "supplier"
)

// Valid reports whether the kind is one of the two known ledgers.
func (k PartyKind) Valid() bool {
	return k == PartyCustomer || k == PartySupplier
}

// SignedAmount folds one entry into a running balance using the kind's
// convention: the customer ledger tracks receivables (debit increases what the
// customer owes us), the supplier ledger tracks payables (credit increases what
// we owe the supplier).
func (k PartyKind) SignedAmount(debit, credit float64) float64 {
	if k == PartySupplier {
		return credit - debit
	}
	return debit - credit
}

// RefType enumerates the business events that produce ledger entries.
type RefType string

const (
	RefInvoice        RefType = "Invoice"
	RefPurchase       RefType = "Purchase"
	RefPayment        RefType = "Payment"
	RefReturn         RefType = "Return"
	RefReversal       RefType = "Reversal"
	RefOpeningBalance RefType = "Opening Balance"
)

// ValidFor reports whether the reference type applies to the given ledger.
func (t RefType) ValidFor(kind PartyKind) bool {
	switch t {
	case RefPayment, RefReturn, RefReversal, RefOpeningBalance:
		return true
	case RefInvoice:
		return kind == PartyCustomer
	case RefPurchase:
		return kind == PartySupplier
	default:
		return false
	}
}

// BalanceEpsilon is the currency tolerance below which a stored running balance
// is considered equal to the recomputed one, avoiding needless writes on
// floating-point noise.
const BalanceEpsilon = 0.001

// Entry is one row of a party's signed ledger. Balance is a snapshot of the
// running total at this row in canonical (date, created_at) order; it is
// rewritten only by recalculation, never trusted as independently authoritative.
type Entry struct {
	ID          int64
	Kind        PartyKind
	PartyID     int64
	OwnerID     int64
	Date        time.Time
	RefType     RefType
	RefID       *int64
	RefNo       string
	Description string
	Debit       float64
	Credit      float64
	Balance     float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BalanceUpdate addresses one entry whose snapshot drifted from the fold.
type BalanceUpdate struct {
	EntryID int64
	Balance float64
}

// NearlyEqual compares currency amounts within eps.
func NearlyEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
