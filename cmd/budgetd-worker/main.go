package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetd/internal/config"
	"budgetd/internal/events"
	"budgetd/internal/ledger"
	applog "budgetd/internal/log"
	"budgetd/internal/storage"
	"budgetd/internal/storage/memory"
	"budgetd/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting budgetd-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var store storage.Store
	switch cfg.DataBackend {
	case "sqlite":
		sqliteStore, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize sqlite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer sqliteStore.Close()
		store = sqliteStore
	default:
		// A memory-backed worker only makes sense for local smoke runs;
		// it shares no state with a memory-backed server.
		store = memory.New()
		logger.Warn("Using memory backend, occurrence state will not persist")
	}

	var publisher ledger.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, overdue events disabled", "error", err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	svc := ledger.NewService(store, publisher, ledger.Options{
		EOMThresholdDays: cfg.EOMThresholdDays,
		StorageTimeout:   cfg.StorageTimeout,
		SummaryTTL:       cfg.SummaryTTL,
		IncomePolicy:     ledger.IncomePolicy(cfg.IncomePolicy),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := worker.NewOccurrenceWorker(svc, cfg.WorkerInterval)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("Worker loop failed", "error", err)
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()

	select {
	case <-done:
		logger.Info("Worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
