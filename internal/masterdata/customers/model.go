package customers

import "time"

// Lifecycle is the customer's visibility state. Deleted customers keep their
// rows and ledger history and can be restored.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "Active"
	LifecycleDeleted Lifecycle = "Deleted"
)

// Customer is a party on the receivable side. Balance is the cached fold of the
// customer's signed ledger: positive means the customer owes us.
type Customer struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"-"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	GSTIN     string    `json:"gstin,omitempty"`
	Balance   float64   `json:"balance"`
	State     Lifecycle `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input carries the editable customer fields. OpeningBalance is honored on
// create only; later adjustments go through AdjustBalance.
type Input struct {
	Name           string  `json:"name" validate:"required"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email" validate:"omitempty,email"`
	Address        string  `json:"address"`
	GSTIN          string  `json:"gstin"`
	OpeningBalance float64 `json:"openingBalance"`
}

// AdjustInput moves the cached balance by posting an opening-balance entry.
type AdjustInput struct {
	Amount float64 `json:"amount" validate:"required"`
	Note   string  `json:"note"`
}
