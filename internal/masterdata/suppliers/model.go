package suppliers

import "time"

// Lifecycle is the supplier's visibility state.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "Active"
	LifecycleDeleted Lifecycle = "Deleted"
)

// Supplier is a party on the payable side. Balance is the cached fold of the
// supplier's signed ledger: positive means we owe the supplier.
type Supplier struct {
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

// Input carries the editable supplier fields. OpeningBalance is honored on
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
