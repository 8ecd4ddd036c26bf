// Package worker generates upcoming bill and income occurrences and flags
// overdue bills. It is a maintenance loop: every action it performs is also
// safe to run twice.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetd/internal/ledger"
	"budgetd/internal/metrics"
)

const maxConcurrentUsers = 4

// OccurrenceWorker drives the scheduling passes over all known users.
type OccurrenceWorker struct {
	ledger   *ledger.Service
	interval time.Duration
}

func NewOccurrenceWorker(svc *ledger.Service, interval time.Duration) *OccurrenceWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OccurrenceWorker{
		ledger:   svc,
		interval: interval,
	}
}

// Run executes one pass immediately and then one per interval until ctx is
// done.
func (w *OccurrenceWorker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Occurrence worker started", "interval", w.interval)

	if err := w.RunOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial occurrence pass failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Occurrence worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "Occurrence pass failed", "error", err)
			}
		}
	}
}

// RunOnce runs a single scheduling pass over all users.
func (w *OccurrenceWorker) RunOnce(ctx context.Context) error {
	start := time.Now()

	userIDs, err := w.ledger.UserIDs(ctx)
	if err != nil {
		metrics.WorkerRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("list users: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUsers)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			return w.processUser(gctx, userID)
		})
	}

	if err := g.Wait(); err != nil {
		metrics.WorkerRuns.WithLabelValues("error").Inc()
		return err
	}

	metrics.WorkerRuns.WithLabelValues("ok").Inc()
	slog.InfoContext(ctx, "Occurrence pass completed",
		"users", len(userIDs),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *OccurrenceWorker) processUser(ctx context.Context, userID string) error {
	billsCreated, err := w.ledger.EnsureBillOccurrences(ctx, userID)
	if err != nil {
		return fmt.Errorf("ensure bill occurrences for %s: %w", userID, err)
	}

	overdue, err := w.ledger.MarkOverdueBillOccurrences(ctx, userID)
	if err != nil {
		return fmt.Errorf("mark overdue occurrences for %s: %w", userID, err)
	}
	if overdue > 0 {
		metrics.OverdueOccurrences.Add(float64(overdue))
	}

	incomeCreated, err := w.ledger.EnsureIncomeOccurrences(ctx, userID)
	if err != nil {
		return fmt.Errorf("ensure income occurrences for %s: %w", userID, err)
	}

	if billsCreated > 0 || overdue > 0 || incomeCreated > 0 {
		slog.InfoContext(ctx, "Processed user schedules",
			"user_id", userID,
			"bill_occurrences_created", billsCreated,
			"marked_overdue", overdue,
			"income_occurrences_created", incomeCreated)
	}
	return nil
}
