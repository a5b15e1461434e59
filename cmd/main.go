package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"catalog-service/internal/audit"
	"catalog-service/internal/classifier"
	"catalog-service/internal/config"
	"catalog-service/internal/events"
	"catalog-service/internal/handlers"
	"catalog-service/internal/middleware"
	"catalog-service/internal/repository"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Chromatography Catalog API
// @version 1.0.0
// @description Product catalog service for chromatography consumables: faceted search, category graph, rule-based classification and consistency tooling

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8087
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Seed the category taxonomy on an empty database
	if err := repository.SeedCategories(db); err != nil {
		log.Fatal("Failed to seed categories:", err)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisOpts.Password = secrets.GetRedisPassword()
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
		redisClient.Close()
		redisClient = nil
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Initialize repositories
	catalogRepo := repository.NewCatalogRepository(db, redisClient)
	categoryRepo := repository.NewCategoryRepository(db, redisClient)

	// Initialize event publisher only if NATS_URL is set
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	// Classification and consistency machinery. A nil sink disables events.
	var sink classifier.EventSink
	if eventsPublisher != nil {
		sink = eventsPublisher
	}
	engine := classifier.NewEngine(catalogRepo, nil, logger, sink)
	auditor := audit.NewAuditor(catalogRepo, logger)
	repairer := audit.NewRepairer(catalogRepo, engine, logger)

	// Initialize handlers
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, categoryRepo)
	adminHandler := handlers.NewAdminHandler(engine, auditor, repairer, catalogRepo)
	importHandler := handlers.NewImportHandler(catalogRepo, engine, eventsPublisher, cfg.MaxImportRows, cfg.ClassifyBatchSize)

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("catalog-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("catalog-service"))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	// Initialize Prometheus metrics
	metrics := gosharedmw.InitGlobalMetrics("chromshop", "catalog_service")

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("catalog-service"))
	router.Use(gosharedmw.CompressionMiddleware())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)
	router.GET("/metrics", gosharedmw.Handler())

	// Public catalog routes
	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.POST("/search", catalogHandler.SearchProducts)
			products.GET("/:productId", catalogHandler.GetProduct)
		}

		v1.GET("/brands", catalogHandler.ListBrands)

		categories := v1.Group("/categories")
		{
			categories.GET("/tree", catalogHandler.GetCategoryTree)
			categories.GET("/:idOrSlug", catalogHandler.GetCategory)
			categories.GET("/:idOrSlug/children", catalogHandler.GetCategoryChildren)
			categories.GET("/:idOrSlug/ancestors", catalogHandler.GetCategoryAncestors)
		}
	}

	// Admin routes: ingest, classification and consistency tooling
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.AdminAPIKey(cfg.AdminAPIKey))
	{
		admin.GET("/products/import/template", importHandler.GetImportTemplate)
		admin.POST("/products/import", importHandler.ImportProducts)
		admin.POST("/products/bulk", importHandler.BulkUpsert)

		admin.POST("/classify/products", adminHandler.ClassifyProducts)
		admin.POST("/classify/products/:productId", adminHandler.ClassifyProduct)
		admin.POST("/classify/orphans", adminHandler.ClassifyOrphans)

		admin.GET("/audit", adminHandler.AuditCatalog)
		admin.POST("/repair", adminHandler.RepairCatalog)

		admin.POST("/enrich/usp", adminHandler.BackfillUSP)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Catalog service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down catalog-service...")

	if tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}

	log.Println("Catalog service stopped")
}
