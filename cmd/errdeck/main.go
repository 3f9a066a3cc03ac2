package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/errdeck/errdeck/internal/backtrace"
	"github.com/errdeck/errdeck/internal/baseline"
	"github.com/errdeck/errdeck/internal/cascade"
	"github.com/errdeck/errdeck/internal/config"
	"github.com/errdeck/errdeck/internal/database"
	"github.com/errdeck/errdeck/internal/events"
	"github.com/errdeck/errdeck/internal/handlers"
	"github.com/errdeck/errdeck/internal/jobs"
	"github.com/errdeck/errdeck/internal/middleware"
	"github.com/errdeck/errdeck/internal/notify"
	"github.com/errdeck/errdeck/internal/services"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting errdeck...")

	// Load grouping and severity rules
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}
	if cfg.RulesPath != "" {
		log.Printf("Rules loaded from %s (%d severity overrides, %d ignore patterns)",
			cfg.RulesPath, len(rules.SeverityOverrides), len(rules.IgnoredExceptions))
	}

	// Initialize database connection
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	// Run database migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize default database records
	if err := database.InitializeDefaults(); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}

	settings, err := database.GetOrCreateTrackerSettings(database.DB)
	if err != nil {
		log.Fatalf("Failed to load tracker settings: %v", err)
	}

	// Event bus connects ingestion and jobs to notification
	bus := events.NewBus()

	// Slack notifier (re-reads its settings per event, so it can be
	// enabled at runtime)
	notifier := notify.NewSlackNotifier(database.DB)
	notifier.Register(bus)

	// Initialize ingestion service
	ingestService := services.NewIngestService(database.DB, bus, cfg, rules, settings)
	if cfg.AsyncIngestion {
		ingestService.StartAsync(cfg.AsyncQueueSize)
		log.Printf("Async ingestion enabled (queue size %d)", cfg.AsyncQueueSize)
	}

	// Initialize issue management and analytics services
	issueService := services.NewIssueService(database.DB, bus)
	correlationService := services.NewCorrelationService(database.DB)
	patternService := services.NewPatternService(database.DB)

	scorer := backtrace.NewScorer(database.DB, settings.SimilarityCandidateLimit)
	detector := cascade.NewDetector(database.DB,
		time.Duration(settings.CascadeWindowSeconds)*time.Second,
		settings.CascadeMinProbability)

	// Background jobs
	cooldown := baseline.NewAlertCooldown()
	baselineJob := jobs.NewBaselineJob(database.DB, cooldown, bus)
	cascadeJob := jobs.NewCascadeJob(database.DB, detector)
	patternJob := jobs.NewPatternJob(database.DB, patternService)

	scheduler := jobs.NewScheduler()
	if err := scheduler.RegisterAll(settings, baselineJob, cascadeJob, patternJob); err != nil {
		log.Fatalf("Failed to register jobs: %v", err)
	}
	scheduler.Start()
	log.Printf("Background jobs scheduled")

	// Initialize HTTP handlers
	reportHandler := handlers.NewReportHandler(ingestService)
	issueHandler := handlers.NewIssueHandler(issueService, scorer, detector)
	statsHandler := handlers.NewStatsHandler(correlationService, patternService)
	httpHandler := handlers.NewHTTPHandler(reportHandler, issueHandler, statsHandler)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)

	// Wrap all routes with CORS and request ID middleware
	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	wrapped := corsMiddleware.Wrap(middleware.RequestIDMiddleware(mux))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: wrapped,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal, cleaning up...")

		log.Println("Stopping background jobs...")
		scheduler.Stop()

		if cfg.AsyncIngestion {
			log.Println("Draining ingestion queue...")
			ingestService.StopAsync()
		}

		log.Println("Shutting down HTTP server...")
		if err := httpServer.Close(); err != nil {
			log.Printf("Error shutting down HTTP server: %v", err)
		}

		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}

		log.Println("Shutdown complete")
		os.Exit(0)
	}()

	log.Println("errdeck is running! Press Ctrl+C to exit.")
	log.Printf("Report endpoint: http://localhost:%d/api/report", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	// Keep the main goroutine alive
	for {
		time.Sleep(time.Hour)
	}
}
