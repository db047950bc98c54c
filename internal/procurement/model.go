package procurement

import "time"

// Purchase is goods received from a supplier. Amount lands as a credit on the
// supplier's signed ledger; ReturnedAmount tracks how much has since gone back.
type Purchase struct {
	ID             int64          `json:"id"`
	OwnerID        int64          `json:"-"`
	SupplierID     int64          `json:"supplierId"`
	BillNo         string         `json:"billNo,omitempty"`
	Date           time.Time      `json:"date"`
	Amount         float64        `json:"amount"`
	ReturnedAmount float64        `json:"returnedAmount"`
	Note           string         `json:"note,omitempty"`
	Items          []PurchaseItem `json:"items,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// PurchaseItem is one received product line.
type PurchaseItem struct {
	ID         int64   `json:"id"`
	PurchaseID int64   `json:"-"`
	ProductID  int64   `json:"productId"`
	Quantity   float64 `json:"quantity"`
	UnitCost   float64 `json:"unitCost"`
}

// ItemInput is one line of a purchase or a return.
type ItemInput struct {
	ProductID int64   `json:"productId" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	UnitCost  float64 `json:"unitCost" validate:"gte=0"`
}

// RecordInput carries the fields to record a purchase. Amount may be left zero
// when Items are given; it is then computed as the sum of line costs.
type RecordInput struct {
	SupplierID int64       `json:"supplierId" validate:"required"`
	BillNo     string      `json:"billNo"`
	Date       time.Time   `json:"date"`
	Amount     float64     `json:"amount" validate:"gte=0"`
	Note       string      `json:"note"`
	Items      []ItemInput `json:"items" validate:"dive"`
}

// ReturnInput sends part of a purchase back to the supplier.
type ReturnInput struct {
	Amount float64     `json:"amount" validate:"required,gt=0"`
	Note   string      `json:"note"`
	Items  []ItemInput `json:"items" validate:"dive"`
}
