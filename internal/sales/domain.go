package sales

import "time"

// PaymentStatus tracks how much of the invoice has been settled.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "Paid"
	StatusPartial PaymentStatus = "Partial"
	StatusDue     PaymentStatus = "Due"
)

// Lifecycle tracks the document's existence independent of payment. Void
// cancels a sale and returns its stock; Deleted hides the document but keeps
// the row so it can be restored.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "Active"
	LifecycleVoid    Lifecycle = "Void"
	LifecycleDeleted Lifecycle = "Deleted"
)

// Invoice is one sale.
type Invoice struct {
	ID            int64         `json:"id"`
	OwnerID       int64         `json:"-"`
	CustomerID    int64         `json:"customerId"`
	Number        string        `json:"number"`
	Date          time.Time     `json:"date"`
	GSTInclusive  bool          `json:"gstInclusive"`
	Subtotal      float64       `json:"subtotal"`
	DiscountTotal float64       `json:"discountTotal"`
	TaxTotal      float64       `json:"taxTotal"`
	GrandTotal    float64       `json:"grandTotal"`
	PaidAmount    float64       `json:"paidAmount"`
	Status        PaymentStatus `json:"status"`
	Lifecycle     Lifecycle     `json:"lifecycle"`
	Lines         []InvoiceLine `json:"lines"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// InvoiceLine is one sold item with its computed amounts.
type InvoiceLine struct {
	ID             int64   `json:"id"`
	InvoiceID      int64   `json:"invoiceId"`
	ProductID      int64   `json:"productId"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitPrice      float64 `json:"unitPrice"`
	DiscountPct    float64 `json:"discountPct"`
	GSTRate        float64 `json:"gstRate"`
	DiscountAmount float64 `json:"discountAmount"`
	TaxAmount      float64 `json:"taxAmount"`
	LineTotal      float64 `json:"lineTotal"`
}

// settledStatus derives the payment status from the amounts. Tolerance keeps
// a fully-settled invoice from reading Partial over a rounding cent.
func settledStatus(paid, grand float64) PaymentStatus {
	switch {
	case paid >= grand-0.01:
		return StatusPaid
	case paid > 0:
		return StatusPartial
	default:
		return StatusDue
	}
}
