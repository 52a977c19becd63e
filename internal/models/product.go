package models

import "time"

// Product is a single row in the inventory, keyed by its barcode.
// The barcode is assigned once at creation and never changes; every
// mutation (update or stock adjustment) touches UpdatedAt, which is
// also the sort key for search results.
type Product struct {
	Barcode     string    `json:"barcode" gorm:"primaryKey;type:varchar(64)" validate:"required,max=64"`
	Name        string    `json:"name" validate:"required,max=100"`
	Description string    `json:"description" validate:"omitempty,max=500"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price" validate:"gte=0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
