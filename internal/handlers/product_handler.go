package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"gudang/internal/models"
	"gudang/internal/repositories"
	"gudang/internal/services"
)

// ProductHandler handles HTTP requests for the product inventory.
type ProductHandler struct {
	service  *services.InventoryService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.InventoryService) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the product routes. Lookup and search are
// public so the read-only scanner dashboard can call them without
// credentials; every mutating route goes on the staff router.
func (h *ProductHandler) RegisterRoutes(public, staff fiber.Router) {
	reads := public.Group("/products")
	reads.Get("/", h.HandleSearchProducts)
	reads.Get("/:barcode", h.HandleGetProduct)

	writes := staff.Group("/products")
	writes.Post("/", h.HandleCreateProduct)
	writes.Put("/:barcode", h.HandleUpdateProduct)
	writes.Post("/:barcode/adjust", h.HandleAdjustInventory)
}

// CreateProductRequest is the body of POST /products. Quantity and
// price are pointers so a missing field is distinguishable from an
// explicit zero.
type CreateProductRequest struct {
	Barcode     string   `json:"barcode" validate:"required,max=64"`
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"omitempty,max=500"`
	Quantity    *int     `json:"quantity" validate:"required"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
}

// UpdateProductRequest is the body of PUT /products/:barcode. The
// barcode in the path is authoritative; the body carries none.
type UpdateProductRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"omitempty,max=500"`
	Quantity    *int     `json:"quantity" validate:"required"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
}

// AdjustInventoryRequest is the body of POST /products/:barcode/adjust.
type AdjustInventoryRequest struct {
	Change *int `json:"change" validate:"required"`
}

// ProductSummary is the shape of a search result row.
type ProductSummary struct {
	Barcode   string    `json:"barcode"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HandleGetProduct retrieves a single product by its barcode.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	barcode := c.Params("barcode")
	product, err := h.service.Lookup(c.UserContext(), barcode)
	if err != nil {
		return h.respondStoreError(c, err, "get product "+barcode)
	}
	return c.JSON(product)
}

// HandleSearchProducts returns a bounded page of products matching the
// q query parameter. No matches is an empty list, never an error.
func (h *ProductHandler) HandleSearchProducts(c *fiber.Ctx) error {
	query := c.Query("q")
	limit := c.QueryInt("limit")
	offset := c.QueryInt("offset")
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > h.service.PageSize() {
		limit = h.service.PageSize()
	}

	products, err := h.service.Search(c.UserContext(), query, limit, offset)
	if err != nil {
		return h.respondStoreError(c, err, "search products")
	}

	summaries := make([]ProductSummary, 0, len(products))
	for _, p := range products {
		summaries = append(summaries, ProductSummary{
			Barcode:   p.Barcode,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  p.Quantity,
			UpdatedAt: p.UpdatedAt,
		})
	}

	response := fiber.Map{"products": summaries}
	if len(summaries) == limit {
		// A full page may have more behind it; hand back a token.
		response["next_offset"] = offset + limit
	}
	return c.JSON(response)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create product request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationErrors(c, err)
	}

	product := &models.Product{
		Barcode:     req.Barcode,
		Name:        req.Name,
		Description: req.Description,
		Quantity:    *req.Quantity,
		Price:       *req.Price,
	}
	if err := h.service.Create(c.UserContext(), product); err != nil {
		return h.respondStoreError(c, err, "create product "+req.Barcode)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Product added",
		"product": product,
	})
}

// HandleUpdateProduct replaces name, description, quantity and price
// of an existing product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	barcode := c.Params("barcode")
	var req UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing update product request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationErrors(c, err)
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Quantity:    *req.Quantity,
		Price:       *req.Price,
	}
	if err := h.service.Update(c.UserContext(), barcode, product); err != nil {
		return h.respondStoreError(c, err, "update product "+barcode)
	}

	return c.JSON(fiber.Map{
		"message": "Product updated",
	})
}

// HandleAdjustInventory applies a signed quantity delta to a product.
func (h *ProductHandler) HandleAdjustInventory(c *fiber.Ctx) error {
	barcode := c.Params("barcode")
	var req AdjustInventoryRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing adjust inventory request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body: change must be an integer",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationErrors(c, err)
	}

	quantity, err := h.service.Adjust(c.UserContext(), barcode, *req.Change)
	if err != nil {
		return h.respondStoreError(c, err, "adjust inventory "+barcode)
	}

	return c.JSON(fiber.Map{
		"message":  "Inventory adjusted",
		"quantity": quantity,
	})
}

// respondStoreError maps a store error onto exactly one status from
// the error taxonomy. Unexpected errors are logged and reported
// generically; raw storage detail never reaches the caller.
func (h *ProductHandler) respondStoreError(c *fiber.Ctx, err error, op string) error {
	switch {
	case errors.Is(err, repositories.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	case errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Product not found",
		})
	case errors.Is(err, repositories.ErrDuplicateBarcode):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "A product with this barcode already exists",
		})
	case repositories.IsTransient(err):
		log.Printf("Transient storage error on %s: %v", op, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Storage temporarily unavailable, please retry",
		})
	default:
		log.Printf("Error on %s: %v", op, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not complete the request",
		})
	}
}

// respondValidationErrors renders validator errors as a field → reason
// map, matching the auth handler's format.
func respondValidationErrors(c *fiber.Ctx, err error) error {
	validationErrors := err.(validator.ValidationErrors)
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
