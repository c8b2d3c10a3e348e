package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/quantfolio/insights/config"
	_ "github.com/quantfolio/insights/docs"
	"github.com/quantfolio/insights/internal/cache"
	"github.com/quantfolio/insights/internal/database"
	"github.com/quantfolio/insights/internal/handlers"
	"github.com/quantfolio/insights/internal/marketdata"
	"github.com/quantfolio/insights/internal/middleware"
	"github.com/quantfolio/insights/internal/repository"
	"github.com/quantfolio/insights/internal/services"
)

// @title Portfolio Insights API
// @version 1.0
// @description Historical valuation, performance and risk analytics over a transaction ledger.
// @BasePath /
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create context for initialization
	ctx := context.Background()

	// Initialize database connection
	db, err := database.New(ctx, cfg.PGURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize market data client
	mdClient := marketdata.NewClient(cfg.MDKey, cfg.ProviderTimeout)

	// Initialize result cache
	insightsCache := cache.NewInsightsCache()

	// Initialize repositories
	txRepo := repository.NewTransactionRepository(db.Pool)
	assetRepo := repository.NewAssetRepository(db.Pool)
	priceRepo := repository.NewPriceRepository(db.Pool)
	fxRepo := repository.NewFXRepository(db.Pool)

	// Initialize services
	pricingSvc := services.NewPricingService(priceRepo, fxRepo, mdClient)
	valuationSvc := services.NewValuationService(cfg.StaleToleranceDays)
	insightsSvc := services.NewInsightsService(txRepo, assetRepo, pricingSvc, valuationSvc, insightsCache, cfg.RiskFreeRatePct)

	// Initialize handlers
	insightsHandler := handlers.NewInsightsHandler(insightsSvc)

	// Setup Gin router
	router := gin.Default()

	// Apply global middleware
	router.Use(middleware.ValidateUser())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Insights routes
	router.GET("/portfolios/:id/insights", insightsHandler.GetInsights)
	router.GET("/portfolios/:id/value-series", insightsHandler.GetValueSeries)

	// Swagger docs
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 5 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	fmt.Println("Server exited")
}
