package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"gudang/internal/handlers"
	"gudang/internal/middleware"
	"gudang/internal/models"
	"gudang/internal/repositories"
	"gudang/internal/services"
	"gudang/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DATABASE_URL", "") // postgres DSN; empty falls back to SQLite
	viper.SetDefault("SQLITE_PATH", "inventory.db")
	viper.SetDefault("RABBITMQ_URL", "") // empty disables the event stream
	viper.SetDefault("ALLOW_NEGATIVE_STOCK", true)
	viper.SetDefault("SEARCH_PAGE_SIZE", 50)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 10)
	viper.SetDefault("REQUEST_TIMEOUT", 5*time.Second)
	viper.AutomaticEnv()

	appPort := viper.GetString("APP_PORT")
	jwtSecret := viper.GetString("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatalf("JWT_SECRET must be set")
	}

	// --- Database ---
	db, err := openDatabase()
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.User{}); err != nil {
		log.Fatalf("Failed to auto-migrate database: %v", err)
	}

	// --- RabbitMQ (optional) ---
	var mqClient *rabbitmq.Client
	if rabbitMQURL := viper.GetString("RABBITMQ_URL"); rabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: rabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
	} else {
		log.Println("RABBITMQ_URL not set; inventory events are disabled")
	}

	// --- Repositories ---
	allowNegative := viper.GetBool("ALLOW_NEGATIVE_STOCK")
	productRepo := repositories.NewGORMProductRepository(db, allowNegative)
	userRepo := repositories.NewGORMUserRepository(db)

	// --- Services ---
	var publisher services.EventPublisher
	if mqClient != nil {
		publisher = mqClient
	}
	inventoryService := services.NewInventoryService(
		productRepo,
		publisher,
		viper.GetInt("SEARCH_PAGE_SIZE"),
		viper.GetDuration("REQUEST_TIMEOUT"),
	)
	authService := services.NewAuthService(userRepo, jwtSecret)

	// --- Handlers ---
	productHandler := handlers.NewProductHandler(inventoryService)
	authHandler := handlers.NewAuthHandler(authService)

	// --- Fiber App ---
	app := fiber.New()
	app.Use(logger.New())

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)

	// Mutating inventory routes require a staff token; lookup and
	// search stay public for the read-only scanner dashboard.
	staffRoutes := apiV1.Group("", middleware.AuthRequired(authService), middleware.RequireStaff())
	productHandler.RegisterRoutes(apiV1, staffRoutes)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Inventory event consumer ---
	// Stands in for the scan-history dashboard feed: logs every event
	// flowing through the queue.
	if mqClient != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for inventory events...")
			messageHandler := func(msg amqp.Delivery) error {
				var event rabbitmq.InventoryEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					log.Printf("Skipping malformed inventory event (Tag: %d): %v", msg.DeliveryTag, err)
					return nil
				}
				log.Printf("Inventory event %s: %s barcode=%s quantity=%d delta=%d",
					event.ID, event.Type, event.Barcode, event.Quantity, event.Delta)
				return nil
			}
			if consumerErr := mqClient.ConsumeInventoryEvents(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// openDatabase opens a pooled GORM handle: PostgreSQL when
// DATABASE_URL is set, a local SQLite file otherwise. Each request
// acquires a scoped connection from the pool; nothing in the process
// holds a long-lived cursor.
func openDatabase() (*gorm.DB, error) {
	var dialector gorm.Dialector
	if dsn := viper.GetString("DATABASE_URL"); dsn != "" {
		dialector = postgres.Open(dsn)
	} else {
		path := viper.GetString("SQLITE_PATH")
		log.Printf("DATABASE_URL not set; using SQLite database at %s", path)
		dialector = sqlite.Open(path)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	maxConns := viper.GetInt("DB_MAX_OPEN_CONNS")
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
