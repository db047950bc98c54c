package payments

import (
	"time"

	"github.com/tillbook/tillbook/internal/ledger"
)

// Method enumerates how a payment was settled.
type Method string

const (
	MethodCash   Method = "Cash"
	MethodUPI    Method = "UPI"
	MethodCard   Method = "Card"
	MethodBank   Method = "Bank"
	MethodCheque Method = "Cheque"
)

// Valid reports whether the method is known.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodUPI, MethodCard, MethodBank, MethodCheque:
		return true
	}
	return false
}

// Payment is money received from a customer or paid to a supplier. Direction
// follows Kind: customer payments settle receivables, supplier payments settle
// payables.
type Payment struct {
	ID        int64            `json:"id"`
	OwnerID   int64            `json:"-"`
	Kind      ledger.PartyKind `json:"kind"`
	PartyID   int64            `json:"partyId"`
	InvoiceID *int64           `json:"invoiceId,omitempty"`
	Reference string           `json:"reference"`
	Date      time.Time        `json:"date"`
	Amount    float64          `json:"amount"`
	Method    Method           `json:"method"`
	Note      string           `json:"note,omitempty"`
	Reversed  bool             `json:"reversed"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// RecordInput carries the fields to record a standalone payment.
type RecordInput struct {
	PartyID   int64     `json:"partyId" validate:"required"`
	InvoiceID *int64    `json:"invoiceId"`
	Reference string    `json:"reference" validate:"omitempty,max=64"`
	Date      time.Time `json:"date"`
	Amount    float64   `json:"amount" validate:"required,gt=0"`
	Method    Method    `json:"method" validate:"required"`
	Note      string    `json:"note"`
}
