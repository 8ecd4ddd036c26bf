package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"budgetd/internal/cache"
	"budgetd/internal/config"
	"budgetd/internal/events"
	apphttp "budgetd/internal/http"
	"budgetd/internal/ledger"
	applog "budgetd/internal/log"
	"budgetd/internal/storage"
	"budgetd/internal/storage/memory"
)

func newServeCmd(logger *applog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the budget ledger HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validate configuration: %w", err)
			}
			return serve(cfg, logger)
		},
	}
}

func serve(cfg *config.Config, logger *applog.Logger) error {
	var store storage.Store
	switch cfg.DataBackend {
	case "sqlite":
		sqliteStore, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return fmt.Errorf("initialize sqlite store: %w", err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
		logger.Info("Initialized sqlite backend", "path", cfg.SQLiteDBPath)
	default:
		store = memory.New()
		logger.Info("Initialized memory backend")
	}

	// Event publishing is best-effort: without a broker the ledger still
	// works, it just stops announcing writes.
	var publisher ledger.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, events disabled", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP event publishing enabled", "exchange", cfg.AMQPExchange)
		}
	}

	svc := ledger.NewService(store, publisher, ledger.Options{
		EOMThresholdDays: cfg.EOMThresholdDays,
		StorageTimeout:   cfg.StorageTimeout,
		SummaryTTL:       cfg.SummaryTTL,
		IncomePolicy:     ledger.IncomePolicy(cfg.IncomePolicy),
	})

	cacheManager := cache.NewManager()
	cacheManager.Register(svc.SummaryCache())
	cacheManager.StartCleanup(10 * time.Minute)
	defer cacheManager.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, svc, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	logger.Info("Starting budgetd server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
	return nil
}
