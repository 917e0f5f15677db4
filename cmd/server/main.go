package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"vinylops/wrap-report/internal/api"
	"vinylops/wrap-report/internal/config"
	"vinylops/wrap-report/internal/repository"
	mongorepo "vinylops/wrap-report/internal/repository/mongo"
	"vinylops/wrap-report/internal/service"
	"vinylops/wrap-report/internal/storage"
)

func main() {
	log.Println("Starting Wrap Report Server...")
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		// Only names; the values include tokens.
		if strings.HasPrefix(pair[0], "DISK_") || strings.HasPrefix(pair[0], "S3_") ||
			strings.HasPrefix(pair[0], "TELEGRAM_") || strings.HasPrefix(pair[0], "SERVER_") {
			log.Printf("ENV: %s is set", pair[0])
		}
	}

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongorepo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongorepo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongorepo.EnsureReportIndexes(ctx, appDB.Collection("reports"))
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Storage ---
	log.Println("Initializing object storage...")
	objectStorage, err := newObjectStorage(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize object storage: %v", err)
	}

	// --- Initialize Repositories ---
	var reportRepo repository.ReportRepository = mongorepo.NewMongoReportRepository(appDB)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	authService := service.NewAuthService(cfg.Telegram.BotToken, cfg.JWT.Secret, cfg.JWT.Expiration)
	reportService := service.NewReportService(objectStorage, reportRepo, cfg.Upload.MaxConcurrency)

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware
	router.MaxMultipartMemory = cfg.Upload.MaxFileSize

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, reportService, cfg.Upload.MaxFileSize)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  60 * time.Second, // multipart bodies can be large
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}

// newObjectStorage selects the storage backend from configuration.
func newObjectStorage(cfg config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3Storage(cfg.S3)
	case "", "disk":
		return storage.NewDiskStorage(cfg.Disk)
	default:
		return nil, errors.New("storage.backend must be \"disk\" or \"s3\"")
	}
}
