package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"numerai-reports/apiclient"
	"numerai-reports/config"
	"numerai-reports/handlers"
	"numerai-reports/middleware"
	"numerai-reports/services"
	"numerai-reports/utils"
	"numerai-reports/workers"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	dbStore := services.NewGormRecordStore(db)
	if err := dbStore.AutoMigrate(); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Postgres first, then R2 when a bucket is configured.
	cache := services.CacheConfig{Stores: []services.RecordStore{dbStore}}
	var exporter *services.Exporter
	bucket, err := utils.NewR2BucketFromEnv(ctx)
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if bucket != nil {
		cache.Stores = append(cache.Stores, services.NewObjectRecordStore(bucket))
		exporter = &services.Exporter{Storage: bucket}
	} else {
		log.Println("⚠️  R2_BUCKET_NAME not set, object cache and report export disabled")
	}

	api := apiclient.NewClient(cfg.APIURL)
	window := services.NewWindow(api, cfg.Schedule, cache)
	reports := services.NewReportService(window, cfg.ReputationWindow)

	syncWorker := workers.NewRoundSyncWorker(window, dbStore, cfg.SyncLookbackRounds)
	go func() {
		log.Println("Running initial round sync...")
		if err := syncWorker.SyncOnce(ctx); err != nil {
			log.Printf("⚠️ Initial sync failed: %v", err)
		}
	}()
	if _, err := services.StartSyncScheduler(ctx, cfg.SyncCron, syncWorker.SyncOnce); err != nil {
		log.Fatal("failed to start sync scheduler:", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout: 5 * time.Minute,
	})
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	handlers.SetupTournamentRoutes(app, window)
	handlers.SetupReportRoutes(app, reports, exporter)
	handlers.SetupSyncRoutes(app, dbStore)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on %s", cfg.ListenAddr)
	log.Printf("✅ Round sync scheduled (%s, lookback %d rounds)", cfg.SyncCron, cfg.SyncLookbackRounds)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
