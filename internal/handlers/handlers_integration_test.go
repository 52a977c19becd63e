package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gudang/internal/handlers"
	"gudang/internal/middleware"
	"gudang/internal/models"
	"gudang/internal/repositories"
	"gudang/internal/services"
)

// setupApp builds the full Fiber app on an in-memory SQLite database,
// wired exactly as main wires it: public lookup/search, staff-gated
// mutations, no message broker.
func setupApp(t *testing.T) (*fiber.App, error) {
	t.Helper()

	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.AutomaticEnv()
	jwtSecret := viper.GetString("JWT_SECRET")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to in-memory database: %w", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.User{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	productRepo := repositories.NewGORMProductRepository(db, true)
	userRepo := repositories.NewGORMUserRepository(db)

	inventoryService := services.NewInventoryService(productRepo, nil, 50, 5*time.Second)
	authService := services.NewAuthService(userRepo, jwtSecret)

	productHandler := handlers.NewProductHandler(inventoryService)
	authHandler := handlers.NewAuthHandler(authService)

	app := fiber.New()

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)

	staffRoutes := apiV1.Group("", middleware.AuthRequired(authService), middleware.RequireStaff())
	productHandler.RegisterRoutes(apiV1, staffRoutes)

	return app, nil
}

// registerAndLogin creates an account with the given role and returns
// a Bearer token for it.
func registerAndLogin(t *testing.T, app *fiber.App, username, role string) string {
	t.Helper()

	registration := map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
		"role":     role,
	}
	jsonBody, _ := json.Marshal(registration)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	credentials := map[string]string{
		"username": username,
		"password": "password123",
	}
	jsonBody, _ = json.Marshal(credentials)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	resp.Body.Close()
	assert.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestScanConsoleScenario(t *testing.T) {
	app, err := setupApp(t)
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "scanstaff", models.RoleStaff)

	// Create {barcode:"12345678", name:"Widget", quantity:10, price:9.99}.
	resp := doJSON(t, app, http.MethodPost, "/api/v1/products", token, map[string]interface{}{
		"barcode":  "12345678",
		"name":     "Widget",
		"quantity": 10,
		"price":    9.99,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Get returns the same record.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/12345678", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var product models.Product
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&product))
	resp.Body.Close()
	assert.Equal(t, "12345678", product.Barcode)
	assert.Equal(t, "Widget", product.Name)
	assert.Equal(t, 10, product.Quantity)
	assert.Equal(t, 9.99, product.Price)
	assert.Equal(t, "", product.Description)

	// Adjust -3, then +100.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/products/12345678/adjust", token, map[string]int{"change": -3})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var adjustResp map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&adjustResp))
	resp.Body.Close()
	assert.Equal(t, float64(7), adjustResp["quantity"])

	resp = doJSON(t, app, http.MethodPost, "/api/v1/products/12345678/adjust", token, map[string]int{"change": 100})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/12345678", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&product))
	resp.Body.Close()
	assert.Equal(t, 107, product.Quantity)

	// Search("Widget") returns exactly one summary with the barcode.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products?q=Widget", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var searchResp struct {
		Products []handlers.ProductSummary `json:"products"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&searchResp))
	resp.Body.Close()
	assert.Len(t, searchResp.Products, 1)
	assert.Equal(t, "12345678", searchResp.Products[0].Barcode)
	assert.Equal(t, 107, searchResp.Products[0].Quantity)

	// Case-insensitive match on the same record.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products?q=wIDGEt", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&searchResp))
	resp.Body.Close()
	assert.Len(t, searchResp.Products, 1)

	// No matches is an empty list, not an error.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products?q=nothing-here", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&searchResp))
	resp.Body.Close()
	assert.Empty(t, searchResp.Products)
}

func TestCreateProductConflictAndValidation(t *testing.T) {
	app, err := setupApp(t)
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "conflictstaff", models.RoleStaff)

	payload := map[string]interface{}{
		"barcode":  "11112222",
		"name":     "Original",
		"quantity": 4,
		"price":    2.50,
	}
	resp := doJSON(t, app, http.MethodPost, "/api/v1/products", token, payload)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Same barcode again conflicts and leaves the row unchanged.
	payload["name"] = "Impostor"
	resp = doJSON(t, app, http.MethodPost, "/api/v1/products", token, payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/11112222", "", nil)
	var product models.Product
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&product))
	resp.Body.Close()
	assert.Equal(t, "Original", product.Name)

	// Missing required fields are rejected before any write.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/products", token, map[string]interface{}{
		"barcode": "33334444",
		"price":   1.00,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Wrong type for quantity is invalid input, not a 500.
	resp = doJSON(t, app, http.MethodPost, "/api/v1/products", token, map[string]interface{}{
		"barcode":  "33334444",
		"name":     "Typo",
		"quantity": "ten",
		"price":    1.00,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/33334444", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdateAndAdjustMissingBarcode(t *testing.T) {
	app, err := setupApp(t)
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "missingstaff", models.RoleStaff)

	resp := doJSON(t, app, http.MethodPut, "/api/v1/products/no-such-barcode", token, map[string]interface{}{
		"name":     "Ghost",
		"quantity": 1,
		"price":    1.00,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/products/no-such-barcode/adjust", token, map[string]int{"change": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Lookup of an absent barcode is a distinct 404, not an empty body.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/no-such-barcode", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.NotEmpty(t, body["message"])

	// The failed update must not have created a row.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products?q=no-such-barcode", "", nil)
	var searchResp struct {
		Products []handlers.ProductSummary `json:"products"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&searchResp))
	resp.Body.Close()
	assert.Empty(t, searchResp.Products)
}

func TestUpdateReplacesFields(t *testing.T) {
	app, err := setupApp(t)
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "updatestaff", models.RoleStaff)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/products", token, map[string]interface{}{
		"barcode":     "55556666",
		"name":        "Before",
		"description": "old",
		"quantity":    3,
		"price":       5.00,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPut, "/api/v1/products/55556666", token, map[string]interface{}{
		"name":        "After",
		"description": "new",
		"quantity":    0,
		"price":       6.50,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/55556666", "", nil)
	var product models.Product
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&product))
	resp.Body.Close()
	assert.Equal(t, "After", product.Name)
	assert.Equal(t, "new", product.Description)
	assert.Equal(t, 0, product.Quantity)
	assert.Equal(t, 6.50, product.Price)
	assert.Equal(t, "55556666", product.Barcode)
}

func TestAdjustRejectsNonIntegerChange(t *testing.T) {
	app, err := setupApp(t)
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "adjuststaff", models.RoleStaff)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/products", token, map[string]interface{}{
		"barcode":  "77778888",
		"name":     "Fragile",
		"quantity": 5,
		"price":    1.00,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/products/77778888/adjust", token, map[string]interface{}{"change": 1.5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/products/77778888/adjust", token, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Quantity is untouched after the rejected adjustments.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products/77778888", "", nil)
	var product models.Product
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&product))
	resp.Body.Close()
	assert.Equal(t, 5, product.Quantity)
}

func TestMutationsRequireStaffToken(t *testing.T) {
	app, err := setupApp(t)
	assert.NoError(t, err)

	createBody := map[string]interface{}{
		"barcode":  "99990000",
		"name":     "Guarded",
		"quantity": 1,
		"price":    1.00,
	}

	// No token at all.
	resp := doJSON(t, app, http.MethodPost, "/api/v1/products", "", createBody)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// A reader token is authenticated but not allowed to mutate.
	readerToken := registerAndLogin(t, app, "dashreader", models.RoleReader)
	resp = doJSON(t, app, http.MethodPost, "/api/v1/products", readerToken, createBody)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/products/99990000/adjust", readerToken, map[string]int{"change": 1})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Reads stay open for the scanner dashboard.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/products?q=", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestSearchPaginationToken(t *testing.T) {
	app, err := setupApp(t)
	assert.NoError(t, err)
	token := registerAndLogin(t, app, "pagingstaff", models.RoleStaff)

	for i := 0; i < 3; i++ {
		resp := doJSON(t, app, http.MethodPost, "/api/v1/products", token, map[string]interface{}{
			"barcode":  fmt.Sprintf("page-%d", i),
			"name":     fmt.Sprintf("Paged %d", i),
			"quantity": i,
			"price":    1.00,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, app, http.MethodGet, "/api/v1/products?q=paged&limit=2", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Products   []handlers.ProductSummary `json:"products"`
		NextOffset *int                      `json:"next_offset"`
	}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()
	assert.Len(t, page.Products, 2)
	assert.NotNil(t, page.NextOffset)
	assert.Equal(t, 2, *page.NextOffset)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/products?q=paged&limit=2&offset=2", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()
	assert.Len(t, page.Products, 1)
	assert.Nil(t, page.NextOffset)
}

func TestRegisterDuplicateAccountConflicts(t *testing.T) {
	app, err := setupApp(t)
	assert.NoError(t, err)

	registration := map[string]string{
		"username": "clerk",
		"email":    "clerk@example.com",
		"password": "password123",
	}
	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", registration)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", registration)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Contains(t, body["error"], "already taken")
}

// A database that stops answering must surface as 503, not 500, so
// scanner clients know to retry.
func TestStorageOutageReportsServiceUnavailable(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.Product{}))

	productRepo := repositories.NewGORMProductRepository(db, true)
	inventoryService := services.NewInventoryService(productRepo, nil, 50, 5*time.Second)
	productHandler := handlers.NewProductHandler(inventoryService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	productHandler.RegisterRoutes(apiV1, apiV1)

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	assert.NoError(t, sqlDB.Close())

	resp := doJSON(t, app, http.MethodGet, "/api/v1/products/12345678", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var body map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "Storage temporarily unavailable, please retry", body["message"])

	resp = doJSON(t, app, http.MethodGet, "/api/v1/products?q=widget", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}
