package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gudang/internal/models"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
// It owns no connection itself; the *gorm.DB wraps a pooled *sql.DB,
// and every statement runs under the caller's context.
type GORMProductRepository struct {
	db *gorm.DB
	// allowNegativeStock controls whether AdjustQuantity may drive a
	// quantity below zero. When false the floor is enforced inside the
	// same atomic UPDATE, so concurrent adjustments cannot race past it.
	allowNegativeStock bool
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB, allowNegativeStock bool) *GORMProductRepository {
	return &GORMProductRepository{
		db:                 db,
		allowNegativeStock: allowNegativeStock,
	}
}

// FindByBarcode retrieves a single product by its barcode.
func (r *GORMProductRepository) FindByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode must not be empty", ErrInvalidInput)
	}
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "barcode = ?", barcode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("barcode %s: %w", barcode, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product by barcode %s: %w", barcode, classifyStorageError(err))
	}
	return &product, nil
}

// Create inserts a new product row. The unique primary key on barcode
// surfaces a duplicate as ErrDuplicateBarcode instead of leaking a raw
// constraint violation.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("barcode %s: %w", product.Barcode, ErrDuplicateBarcode)
		}
		return fmt.Errorf("failed to create product: %w", classifyStorageError(err))
	}
	return nil
}

// Update replaces the mutable fields of an existing product. The
// barcode in the row is authoritative; product.Barcode is ignored.
func (r *GORMProductRepository) Update(ctx context.Context, barcode string, product *models.Product) error {
	if barcode == "" {
		return fmt.Errorf("%w: barcode must not be empty", ErrInvalidInput)
	}
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("barcode = ?", barcode).
		Select("name", "description", "quantity", "price", "updated_at").
		Updates(models.Product{
			Name:        product.Name,
			Description: product.Description,
			Quantity:    product.Quantity,
			Price:       product.Price,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update product %s: %w", barcode, classifyStorageError(res.Error))
	}
	if res.RowsAffected == 0 {
		// A zero-row UPDATE is not a success; the original silently
		// reported one here, which left missing barcodes undetectable.
		return fmt.Errorf("barcode %s: %w", barcode, ErrNotFound)
	}
	return nil
}

// AdjustQuantity applies a signed delta in one atomic UPDATE, so
// concurrent adjustments against the same barcode always compose. The
// RETURNING clause hands back the quantity this exact statement
// produced, not a later snapshot.
func (r *GORMProductRepository) AdjustQuantity(ctx context.Context, barcode string, delta int) (int, error) {
	if barcode == "" {
		return 0, fmt.Errorf("%w: barcode must not be empty", ErrInvalidInput)
	}
	var updated []models.Product
	tx := r.db.WithContext(ctx).Model(&updated).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "quantity"}}}).
		Where("barcode = ?", barcode)
	if !r.allowNegativeStock {
		tx = tx.Where("quantity + ? >= 0", delta)
	}
	res := tx.Updates(map[string]interface{}{"quantity": gorm.Expr("quantity + ?", delta)})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to adjust quantity for %s: %w", barcode, classifyStorageError(res.Error))
	}
	if res.RowsAffected == 0 || len(updated) == 0 {
		if r.allowNegativeStock {
			return 0, fmt.Errorf("barcode %s: %w", barcode, ErrNotFound)
		}
		// With the floor enabled a zero-row UPDATE is either a missing
		// barcode or a rejected adjustment; a follow-up read tells the
		// two apart.
		if _, err := r.FindByBarcode(ctx, barcode); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: adjustment of %d would make quantity negative", ErrInvalidInput, delta)
	}
	return updated[0].Quantity, nil
}

// Search performs a case-insensitive substring match on name or
// barcode, most recently updated first.
func (r *GORMProductRepository) Search(ctx context.Context, query string, limit, offset int) ([]models.Product, error) {
	var products []models.Product
	tx := r.db.WithContext(ctx).Model(&models.Product{})
	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(barcode) LIKE ?", pattern, pattern)
	}
	if err := tx.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to search products: %w", classifyStorageError(err))
	}
	return products, nil
}
