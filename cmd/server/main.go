package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/jhouston2019/claimrecon/internal/config"
	"github.com/jhouston2019/claimrecon/internal/database"
	"github.com/jhouston2019/claimrecon/internal/handlers"
	"github.com/jhouston2019/claimrecon/internal/middleware"
	"github.com/jhouston2019/claimrecon/internal/services"
)

func main() {
	// Load .env file if it exists
	godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create admin user if it doesn't exist
	if err := database.EnsureAdminUser(db, cfg); err != nil {
		log.Printf("Warning: Could not ensure admin user: %v", err)
	}

	// Initialize document storage when S3 credentials are configured.
	// The reconciliation API runs fine without it; only document
	// upload/download endpoints need it.
	var documents *services.DocumentStore
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		documents, err = services.NewDocumentStore(
			cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3Bucket, cfg.S3Region, cfg.S3UseSSL,
		)
		if err != nil {
			log.Printf("Warning: Failed to initialize document storage: %v", err)
			documents = nil
		} else {
			if err := documents.EnsureBucket(context.Background()); err != nil {
				log.Printf("Warning: Failed to ensure S3 bucket exists: %v", err)
			}
			log.Println("Document storage initialized")
		}
	} else {
		log.Println("S3 credentials not configured, document storage disabled")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Create handler with dependencies
	h := handlers.New(db, cfg, documents)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Get("/me", middleware.AuthRequired(cfg), h.GetCurrentUser)
	auth.Post("/refresh", middleware.AuthRequired(cfg), h.RefreshToken)

	// Estimate routes (authenticated)
	estimates := api.Group("/estimates", middleware.AuthRequired(cfg))
	estimates.Post("/", h.CreateEstimate)
	estimates.Get("/", h.ListEstimates)
	estimates.Get("/:id", h.GetEstimate)
	estimates.Delete("/:id", h.DeleteEstimate)
	estimates.Post("/:id/document", h.UploadEstimateDocument)
	estimates.Get("/:id/document", h.GetEstimateDocumentURL)

	// Reconciliation routes (authenticated)
	api.Post("/reconcile", middleware.AuthRequired(cfg), h.Reconcile)
	api.Post("/reconcile/estimates", middleware.AuthRequired(cfg), h.ReconcileEstimates)

	reports := api.Group("/reconciliations", middleware.AuthRequired(cfg))
	reports.Get("/", h.ListReports)
	reports.Get("/:id", h.GetReport)
	reports.Delete("/:id", h.DeleteReport)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthRequired(cfg), middleware.AdminRequired())
	admin.Get("/users", h.AdminListUsers)
	admin.Get("/users/:id", h.AdminGetUser)
	admin.Get("/stats", h.AdminGetStats)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
