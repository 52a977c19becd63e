package repositories

import (
	"context"

	"gudang/internal/models"
)

// ProductRepository defines the interface for product data access.
// Every call is bounded by the caller's context; implementations must
// honor cancellation and map their failures onto the sentinel errors
// declared in this package.
type ProductRepository interface {
	// FindByBarcode retrieves the single product with the given
	// barcode. Returns ErrNotFound if no such row exists.
	FindByBarcode(ctx context.Context, barcode string) (*models.Product, error)

	// Create inserts a new product. Returns ErrDuplicateBarcode if
	// the barcode is already taken; the existing row is unchanged.
	Create(ctx context.Context, product *models.Product) error

	// Update replaces name, description, quantity and price of an
	// existing product. The barcode and creation time are never
	// touched. Returns ErrNotFound if the barcode does not exist.
	Update(ctx context.Context, barcode string, product *models.Product) error

	// AdjustQuantity atomically applies quantity = quantity + delta
	// in a single statement and returns the resulting quantity.
	// Returns ErrNotFound for an absent barcode and ErrInvalidInput
	// when the configured stock policy rejects the adjustment.
	AdjustQuantity(ctx context.Context, barcode string, delta int) (int, error)

	// Search returns products whose name or barcode contains the
	// query, case-insensitively, most recently updated first. An
	// empty query matches everything. Never errors on no matches.
	Search(ctx context.Context, query string, limit, offset int) ([]models.Product, error)
}
