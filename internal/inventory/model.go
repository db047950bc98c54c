package inventory

import "time"

// Product is one stocked item. Stock is tracked as a plain quantity; negative
// stock is never allowed to enter through a sale.
type Product struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"-"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Unit      string    `json:"unit"`
	Price     float64   `json:"price"`
	GSTRate   float64   `json:"gstRate"`
	Stock     float64   `json:"stock"`
	LowStock  float64   `json:"lowStock"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProductInput carries the editable product fields.
type ProductInput struct {
	Name     string  `json:"name" validate:"required"`
	SKU      string  `json:"sku"`
	Unit     string  `json:"unit"`
	Price    float64 `json:"price" validate:"gte=0"`
	GSTRate  float64 `json:"gstRate" validate:"gte=0,lte=100"`
	Stock    float64 `json:"stock" validate:"gte=0"`
	LowStock float64 `json:"lowStock" validate:"gte=0"`
}

// Requirement is one product quantity a sale needs available.
type Requirement struct {
	ProductID int64
	Quantity  float64
}
