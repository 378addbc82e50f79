package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/meridianpay/capture/config"
	"github.com/meridianpay/capture/internal/api"
	"github.com/meridianpay/capture/internal/billing"
	"github.com/meridianpay/capture/internal/cache"
	"github.com/meridianpay/capture/internal/capture"
	"github.com/meridianpay/capture/internal/database"
	"github.com/meridianpay/capture/internal/idempotency"
	"github.com/meridianpay/capture/internal/metrics"
	"github.com/meridianpay/capture/pkg/logger"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "1.0.0"
	buildTime  = "unknown"
)

func main() {
	// Load a local .env before anything reads the environment; absence is fine
	godotenv.Load()

	flag.Parse()

	// Initialize logger
	log := logger.NewLogger("capture")
	log.Info("Starting payment capture service", "version", version, "build_time", buildTime)

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	metrics.SetBuildInfo(version, buildTime)
	api.SetBuildInfo(version, buildTime)
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Initialize database
	log.Info("Connecting to database", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := database.New(database.Config{
		URL:            cfg.Database.GetConnectionString(),
		MaxConnections: cfg.Database.MaxOpenConns,
		MaxIdle:        cfg.Database.MaxIdleConns,
		ConnMaxLife:    cfg.Database.ConnMaxLifetime.Std(),
	})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Apply schema
	log.Info("Applying database schema")
	if err := db.InitSchema(); err != nil {
		log.Error("Failed to apply database schema", "error", err)
		os.Exit(1)
	}

	// Initialize Redis cache
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		log.Info("Connecting to Redis", "host", cfg.Redis.Host, "port", cfg.Redis.Port)
		redisCache, err = cache.NewRedisCache(cache.Config{
			Address:  cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "capture:",
		})
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
	} else {
		log.Info("Redis disabled, running without cache")
	}

	// Initialize the fee table from configuration
	rates, err := billing.NewRateTable(
		cfg.Rates.Pix,
		cfg.Rates.CardBase,
		cfg.Rates.CardInstallmentBase,
		cfg.Rates.CardInstallmentExtra,
	)
	if err != nil {
		log.Error("Invalid rate configuration", "error", err)
		os.Exit(1)
	}

	// Initialize capture coordinator
	coordinator := capture.NewCoordinator(
		db,
		idempotency.NewService(db),
		billing.NewFeeCalculator(rates),
		billing.NewSplitCalculator(),
	)

	// Initialize API server
	log.Info("Initializing API server", "port", cfg.API.Port)
	apiServer := api.NewServer(cfg.API, db, redisCache, coordinator, log)

	// Start API server
	log.Info("Starting API server")
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error("API server failed", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received interrupt signal, shutting down gracefully")
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info("Stopping API server")
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server gracefully", "error", err)
	}

	if metricsServer != nil {
		log.Info("Stopping metrics server")
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop metrics server gracefully", "error", err)
		}
	}

	log.Info("Payment capture service stopped successfully")
}
