package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"gudang/internal/models"
	"gudang/internal/repositories"
	"gudang/pkg/rabbitmq"
)

// EventPublisher publishes inventory events for downstream consumers
// (scan-history dashboards, stock reports). A nil publisher disables
// events; publishing is best-effort and never fails a request.
type EventPublisher interface {
	PublishInventoryEvent(event rabbitmq.InventoryEvent) error
}

// InventoryService handles business logic for the product inventory:
// it bounds every storage call with a timeout, caps search pages, and
// emits an event after each successful mutation.
type InventoryService struct {
	repo     repositories.ProductRepository
	events   EventPublisher // may be nil
	pageSize int
	timeout  time.Duration
}

// NewInventoryService creates a new InventoryService. events may be
// nil when no message broker is configured.
func NewInventoryService(repo repositories.ProductRepository, events EventPublisher, pageSize int, timeout time.Duration) *InventoryService {
	if pageSize <= 0 {
		pageSize = 50
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &InventoryService{
		repo:     repo,
		events:   events,
		pageSize: pageSize,
		timeout:  timeout,
	}
}

// PageSize returns the maximum number of products a search returns.
func (s *InventoryService) PageSize() int {
	return s.pageSize
}

// Lookup retrieves a single product by its barcode.
func (s *InventoryService) Lookup(ctx context.Context, barcode string) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.FindByBarcode(ctx, barcode)
}

// Create inserts a new product and publishes a product.created event.
func (s *InventoryService) Create(ctx context.Context, product *models.Product) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Create(ctx, product); err != nil {
		return err
	}
	s.publish(rabbitmq.EventProductCreated, product.Barcode, product.Quantity, 0)
	return nil
}

// Update replaces the mutable fields of an existing product and
// publishes a product.updated event.
func (s *InventoryService) Update(ctx context.Context, barcode string, product *models.Product) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Update(ctx, barcode, product); err != nil {
		return err
	}
	s.publish(rabbitmq.EventProductUpdated, barcode, product.Quantity, 0)
	return nil
}

// Adjust applies a signed delta to a product's quantity and returns
// the resulting quantity. Each call applies a fresh delta, so callers
// must not blindly retry; the published event carries a unique ID that
// consumers can deduplicate on.
func (s *InventoryService) Adjust(ctx context.Context, barcode string, delta int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	quantity, err := s.repo.AdjustQuantity(ctx, barcode, delta)
	if err != nil {
		return 0, err
	}
	s.publish(rabbitmq.EventInventoryAdjusted, barcode, quantity, delta)
	return quantity, nil
}

// Search returns a bounded page of products matching the query. The
// caller's limit is capped at the configured page size.
func (s *InventoryService) Search(ctx context.Context, query string, limit, offset int) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.Search(ctx, query, limit, offset)
}

// publish emits an inventory event if a publisher is configured.
// Failures are logged and swallowed; the mutation already committed.
func (s *InventoryService) publish(eventType, barcode string, quantity, delta int) {
	if s.events == nil {
		return
	}
	event := rabbitmq.InventoryEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Barcode:    barcode,
		Quantity:   quantity,
		Delta:      delta,
		OccurredAt: time.Now(),
	}
	if err := s.events.PublishInventoryEvent(event); err != nil {
		log.Printf("Warning: Failed to publish %s event for barcode %s: %v", eventType, barcode, err)
	}
}
