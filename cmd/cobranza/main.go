package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cobranza/internal/amqp"
	"cobranza/internal/backend/remote"
	"cobranza/internal/cartera"
	"cobranza/internal/catalog"
	"cobranza/internal/config"
	apphttp "cobranza/internal/http"
	applog "cobranza/internal/log"
	"cobranza/internal/resumen"
	"cobranza/internal/services"
	"cobranza/internal/storage"
)

// rosterValidator bridges the portfolio cache to the payment service.
type rosterValidator struct {
	cache *cartera.Cache
}

func (v rosterValidator) ValidateCreditID(id string) (bool, string) {
	result := v.cache.ValidateCreditID(id)
	return result.Valid, result.Message
}

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	apiToken := cfg.APIToken
	gateway := remote.NewClient(cfg.APIBaseURL, func(ctx context.Context) (string, error) {
		return apiToken, nil
	}, cfg.APITimeout)

	cache := cartera.New(gateway, cartera.WithFreshness(cfg.CacheFreshness))
	types := catalog.New(repo, gateway)
	engine := resumen.NewEngine(gateway, cache, repo, types)

	// Sync publishing is optional: without AMQP, captured payments stay in
	// the ledger until the worker's periodic sweep.
	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, payments will sync via periodic sweep", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	payments := services.NewPaymentService(repo, publisher, rosterValidator{cache: cache})

	srv := apphttp.NewServer(":"+cfg.Port, engine, cache, payments, types)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Warm the portfolio cache and payment-type catalog in the background;
	// both degrade to local data when the backend is unreachable.
	go func() {
		warmCtx, warmCancel := context.WithTimeout(ctx, cfg.APITimeout)
		defer warmCancel()
		if _, err := cache.Refresh(warmCtx, false); err != nil {
			logger.Warn("Initial portfolio refresh failed", "error", err)
		}
		types.Refresh(warmCtx)
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting cobranza server", "port", cfg.Port, "api", cfg.APIBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
