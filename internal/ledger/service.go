// Package ledger implements the zero-based budget allocation engine: it
// keeps Ready-to-Assign, per-category monthly allocations, rollover
// balances, bill obligations and income events mutually consistent.
//
// All mutating operations for one user are serialized behind a per-user
// lock and persisted as a single atomic change set. Every store call runs
// under a bounded timeout and transient failures are retried once.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetd/internal/cache"
	"budgetd/internal/core"
	"budgetd/internal/storage"
)

// IncomePolicy decides how realized income figures into Ready-to-Assign.
type IncomePolicy string

const (
	// IncomePolicyAdditive counts received income on top of the fixed
	// expected-income forecast. RTA rises by exactly the received amount.
	IncomePolicyAdditive IncomePolicy = "additive"
	// IncomePolicyRealized replaces the forecast with realized totals:
	// only received income counts toward RTA.
	IncomePolicyRealized IncomePolicy = "realized"
)

// EventPublisher receives ledger events for downstream consumers. A nil
// publisher degrades to a logged skip.
type EventPublisher interface {
	TransactionCreated(ctx context.Context, tx core.Transaction) error
	BillOccurrenceOverdue(ctx context.Context, o core.BillOccurrence) error
}

// Options tune the service. Zero values fall back to defaults.
type Options struct {
	// EOMThresholdDays is the end-of-month window within which received
	// income may be deferred to the next budget month. Default 3.
	EOMThresholdDays int
	// StorageTimeout bounds every call to the store. Default 5s.
	StorageTimeout time.Duration
	// SummaryTTL bounds staleness of cached month summaries. Default 1h.
	SummaryTTL time.Duration
	// IncomePolicy defaults to IncomePolicyAdditive.
	IncomePolicy IncomePolicy
	// Convert is the frequency-to-monthly policy. Default
	// core.DefaultMonthlyEquivalent.
	Convert core.MonthlyConverter
	// Clock is the time source. Default time.Now.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.EOMThresholdDays == 0 {
		o.EOMThresholdDays = 3
	}
	if o.StorageTimeout == 0 {
		o.StorageTimeout = 5 * time.Second
	}
	if o.SummaryTTL == 0 {
		o.SummaryTTL = time.Hour
	}
	if o.IncomePolicy == "" {
		o.IncomePolicy = IncomePolicyAdditive
	}
	if o.Convert == nil {
		o.Convert = core.DefaultMonthlyEquivalent
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Service is the budget ledger engine.
type Service struct {
	store  storage.Store
	events EventPublisher
	opts   Options

	locks *userLocks

	summaries *cache.LRUCache[core.MonthSummary]
	flight    singleflight.Group
}

func NewService(store storage.Store, events EventPublisher, opts Options) *Service {
	opts = opts.withDefaults()
	summaries := cache.NewLRUCache[core.MonthSummary](1024, opts.SummaryTTL)
	summaries.SetClock(opts.Clock)
	return &Service{
		store:     store,
		events:    events,
		opts:      opts,
		locks:     newUserLocks(),
		summaries: summaries,
	}
}

// SummaryCache exposes the summary cache for cleanup registration.
func (s *Service) SummaryCache() cache.Cleaner { return s.summaries }

// apply persists a change set under the configured timeout, retrying a
// transient failure once with a short backoff. Conflict and domain errors
// surface immediately.
func (s *Service) apply(ctx context.Context, cs storage.ChangeSet) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opts.StorageTimeout)
	err := s.store.Apply(opCtx, cs)
	cancel()
	if err == nil || !core.IsRetryable(err) {
		return err
	}

	slog.WarnContext(ctx, "Retrying change set after transient failure",
		"user_id", cs.UserID, "error", err)
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return &core.PersistenceError{Op: "apply", Err: ctx.Err()}
	}

	opCtx, cancel = context.WithTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	return s.store.Apply(opCtx, cs)
}

// bound derives a store-call context with the configured timeout.
func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StorageTimeout)
}

func (s *Service) publishTransaction(ctx context.Context, tx core.Transaction) {
	if s.events == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping", "tx_id", tx.ID)
		return
	}
	if err := s.events.TransactionCreated(ctx, tx); err != nil {
		// Event delivery is best-effort; the ledger write already stands.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"tx_id", tx.ID, "error", err)
	}
}

func summaryKey(userID string, month core.Month) string {
	return userID + "|" + string(month)
}

// invalidateSummaries drops cached summaries affected by a mutation.
// Writes never read the cache; they only evict.
func (s *Service) invalidateSummaries(userID string, months ...core.Month) {
	for _, m := range months {
		s.summaries.Delete(summaryKey(userID, m))
		// A mutation in m changes the rollover feeding m+1.
		s.summaries.Delete(summaryKey(userID, m.Next()))
	}
}
