package accounting

import "time"

// Nature classifies a group of accounts into one of the four statement heads.
type Nature string

const (
	NatureAssets      Nature = "Assets"
	NatureLiabilities Nature = "Liabilities"
	NatureIncome      Nature = "Income"
	NatureExpenses    Nature = "Expenses"
)

// Valid reports whether the nature is one of the four heads.
func (n Nature) Valid() bool {
	switch n {
	case NatureAssets, NatureLiabilities, NatureIncome, NatureExpenses:
		return true
	}
	return false
}

// Group is a node of the chart of accounts. Nested groups form the tree;
// ledgers hang off leaf or intermediate groups alike.
type Group struct {
	ID        int64
	OwnerID   int64
	Name      string
	Nature    Nature
	ParentID  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ledger is a postable account. CurrentBalance is the net figure under the
// debit-positive convention: debits increase it, credits decrease it,
// regardless of the group's nature.
type Ledger struct {
	ID             int64
	OwnerID        int64
	GroupID        int64
	Name           string
	OpeningBalance float64
	CurrentBalance float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// VoucherType enumerates the journal voucher kinds.
type VoucherType string

const (
	VoucherPayment VoucherType = "Payment"
	VoucherReceipt VoucherType = "Receipt"
	VoucherContra  VoucherType = "Contra"
	VoucherJournal VoucherType = "Journal"
	VoucherSales   VoucherType = "Sales"
	VoucherPurchase VoucherType = "Purchase"
)

// Prefix returns the voucher-number prefix for the type.
func (t VoucherType) Prefix() string {
	switch t {
	case VoucherPayment:
		return "PAY"
	case VoucherReceipt:
		return "RCP"
	case VoucherContra:
		return "CON"
	case VoucherJournal:
		return "JRN"
	case VoucherSales:
		return "SAL"
	case VoucherPurchase:
		return "PUR"
	}
	return ""
}

// Valid reports whether the voucher type is known.
func (t VoucherType) Valid() bool { return t.Prefix() != "" }

// VoucherStatus enumerates voucher lifecycle values.
type VoucherStatus string

const (
	VoucherStatusActive VoucherStatus = "Active"
	VoucherStatusVoid   VoucherStatus = "Void"
)

// Voucher is one double-entry posting. Lines always balance within
// VoucherBalanceEpsilon at the time of creation.
type Voucher struct {
	ID        int64
	OwnerID   int64
	Number    string
	Type      VoucherType
	Date      time.Time
	Narration string
	Status    VoucherStatus
	Lines     []VoucherLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VoucherLine stores the debit or credit amount posted to one ledger.
type VoucherLine struct {
	ID        int64
	VoucherID int64
	LedgerID  int64
	Debit     float64
	Credit    float64
}

// Net returns the line's effect on the ledger balance under the
// debit-positive convention.
func (l VoucherLine) Net() float64 { return l.Debit - l.Credit }
