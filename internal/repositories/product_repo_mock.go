package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gudang/internal/models"
)

// MockProductRepository is an in-memory implementation of
// ProductRepository. It mirrors the GORM implementation's semantics,
// including the negative-stock policy, and is safe for concurrent use.
type MockProductRepository struct {
	products           map[string]models.Product
	allowNegativeStock bool
	mu                 sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository(allowNegativeStock bool) *MockProductRepository {
	return &MockProductRepository{
		products:           make(map[string]models.Product),
		allowNegativeStock: allowNegativeStock,
	}
}

// FindByBarcode returns a product by its barcode.
func (r *MockProductRepository) FindByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode must not be empty", ErrInvalidInput)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[barcode]
	if !ok {
		return nil, fmt.Errorf("barcode %s: %w", barcode, ErrNotFound)
	}
	return &product, nil
}

// Create adds a new product.
func (r *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[product.Barcode]; ok {
		return fmt.Errorf("barcode %s: %w", product.Barcode, ErrDuplicateBarcode)
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	r.products[product.Barcode] = *product
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(ctx context.Context, barcode string, product *models.Product) error {
	if barcode == "" {
		return fmt.Errorf("%w: barcode must not be empty", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[barcode]
	if !ok {
		return fmt.Errorf("barcode %s: %w", barcode, ErrNotFound)
	}
	existing.Name = product.Name
	existing.Description = product.Description
	existing.Quantity = product.Quantity
	existing.Price = product.Price
	existing.UpdatedAt = time.Now()
	r.products[barcode] = existing
	return nil
}

// AdjustQuantity applies a signed delta under the repository lock.
func (r *MockProductRepository) AdjustQuantity(ctx context.Context, barcode string, delta int) (int, error) {
	if barcode == "" {
		return 0, fmt.Errorf("%w: barcode must not be empty", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[barcode]
	if !ok {
		return 0, fmt.Errorf("barcode %s: %w", barcode, ErrNotFound)
	}
	if !r.allowNegativeStock && existing.Quantity+delta < 0 {
		return 0, fmt.Errorf("%w: adjustment of %d would make quantity negative", ErrInvalidInput, delta)
	}
	existing.Quantity += delta
	existing.UpdatedAt = time.Now()
	r.products[barcode] = existing
	return existing.Quantity, nil
}

// Search filters by case-insensitive substring on name or barcode and
// sorts by UpdatedAt descending.
func (r *MockProductRepository) Search(ctx context.Context, query string, limit, offset int) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(query)
	matches := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Barcode), needle) {
			matches = append(matches, p)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})

	if offset >= len(matches) {
		return []models.Product{}, nil
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}
