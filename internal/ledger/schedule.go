package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budgetd/internal/core"
	"budgetd/internal/storage"
)

// Occurrence scheduling: bills and active income sources materialize their
// next due instances from their schedule fields. The worker drives these
// on an interval; they are also safe to call on demand.

// EnsureBillOccurrences creates the next occurrence for every bill that has
// no open (upcoming or overdue) one. The next due date is derived from the
// latest known occurrence, or from now for a bill seen for the first time.
func (s *Service) EnsureBillOccurrences(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrEmptyUserID
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	bills, err := s.store.ListBills(opCtx, userID)
	if err != nil {
		return 0, err
	}

	var created []core.BillOccurrence
	now := s.opts.Clock()
	for _, bill := range bills {
		occs, err := s.store.ListBillOccurrences(opCtx, userID, bill.ID)
		if err != nil {
			return 0, err
		}
		open := false
		var latest time.Time
		for _, o := range occs {
			if o.Status == core.BillUpcoming || o.Status == core.BillOverdue {
				open = true
				break
			}
			if o.DueDate.After(latest) {
				latest = o.DueDate
			}
		}
		if open {
			continue
		}
		base := latest
		if base.IsZero() {
			base = now
		}
		created = append(created, core.BillOccurrence{
			ID:      uuid.NewString(),
			UserID:  userID,
			BillID:  bill.ID,
			DueDate: nextBillDue(bill, base),
			Status:  core.BillUpcoming,
		})
	}
	if len(created) == 0 {
		return 0, nil
	}

	err = s.apply(ctx, storage.ChangeSet{UserID: userID, BillOccurrences: created})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Bill occurrences generated", "user_id", userID, "count", len(created))
	return len(created), nil
}

// MarkOverdueBillOccurrences flips upcoming occurrences whose due date has
// passed to overdue and publishes an event for each.
func (s *Service) MarkOverdueBillOccurrences(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrEmptyUserID
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	occs, err := s.store.ListBillOccurrences(opCtx, userID, "")
	if err != nil {
		return 0, err
	}

	today := s.opts.Clock().Truncate(24 * time.Hour)
	var overdue []core.BillOccurrence
	for _, o := range occs {
		if o.Status == core.BillUpcoming && o.DueDate.Before(today) {
			o.Status = core.BillOverdue
			overdue = append(overdue, o)
		}
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	err = s.apply(ctx, storage.ChangeSet{UserID: userID, BillOccurrences: overdue})
	if err != nil {
		return 0, err
	}
	for _, o := range overdue {
		if s.events == nil {
			continue
		}
		if err := s.events.BillOccurrenceOverdue(ctx, o); err != nil {
			slog.ErrorContext(ctx, "Failed to publish overdue event",
				"occurrence_id", o.ID, "error", err)
		}
	}
	return len(overdue), nil
}

// EnsureIncomeOccurrences schedules the next occurrence for every active
// income source that has none pending.
func (s *Service) EnsureIncomeOccurrences(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrEmptyUserID
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	sources, err := s.store.ListActiveIncomeSources(opCtx, userID)
	if err != nil {
		return 0, err
	}
	occs, err := s.store.ListIncomeOccurrences(opCtx, userID)
	if err != nil {
		return 0, err
	}

	pending := make(map[string]bool)
	latest := make(map[string]time.Time)
	for _, o := range occs {
		if o.Status == core.OccurrenceScheduled {
			pending[o.SourceID] = true
		}
		if o.ScheduledAt.After(latest[o.SourceID]) {
			latest[o.SourceID] = o.ScheduledAt
		}
	}

	now := s.opts.Clock()
	created := 0
	for _, src := range sources {
		if pending[src.ID] {
			continue
		}
		base := latest[src.ID]
		if base.IsZero() {
			base = now
		}
		o := core.IncomeOccurrence{
			ID:          uuid.NewString(),
			UserID:      userID,
			SourceID:    src.ID,
			ScheduledAt: nextIncomeDate(src.Frequency, base),
			NetCents:    src.AmountCents,
			Status:      core.OccurrenceScheduled,
		}
		if err := s.store.CreateIncomeOccurrence(opCtx, o); err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		slog.InfoContext(ctx, "Income occurrences scheduled", "user_id", userID, "count", created)
	}
	return created, nil
}

// UserIDs enumerates users for the worker loop.
func (s *Service) UserIDs(ctx context.Context) ([]string, error) {
	opCtx, cancel := s.bound(ctx)
	defer cancel()
	return s.store.ListUserIDs(opCtx)
}

// nextBillDue computes the next due date strictly after base.
func nextBillDue(b core.Bill, base time.Time) time.Time {
	n := b.EveryN
	if n < 1 {
		n = 1
	}
	switch b.Frequency {
	case core.Weekly, core.Biweekly:
		stride := 7 * n
		if b.Frequency == core.Biweekly {
			stride = 14 * n
		}
		d := base.AddDate(0, 0, 1)
		for d.Weekday() != b.Weekday {
			d = d.AddDate(0, 0, 1)
		}
		if base.Weekday() == b.Weekday {
			// base was itself an occurrence; step a full stride
			return base.AddDate(0, 0, stride)
		}
		return d
	case core.Semimonthly:
		// Twice a month: the anchor day and fifteen days later, clamped.
		first := clampedDay(base.Year(), base.Month(), b.DayOfMonth)
		second := clampedDay(base.Year(), base.Month(), b.DayOfMonth+15)
		switch {
		case first.After(base):
			return first
		case second.After(base):
			return second
		default:
			next := base.AddDate(0, 1, 0)
			return clampedDay(next.Year(), next.Month(), b.DayOfMonth)
		}
	default: // monthly
		due := clampedDay(base.Year(), base.Month(), b.DayOfMonth)
		if due.After(base) {
			return due
		}
		next := base.AddDate(0, n, 0)
		return clampedDay(next.Year(), next.Month(), b.DayOfMonth)
	}
}

// nextIncomeDate advances a pay schedule one step past base.
func nextIncomeDate(f core.Frequency, base time.Time) time.Time {
	switch f {
	case core.Weekly:
		return base.AddDate(0, 0, 7)
	case core.Biweekly:
		return base.AddDate(0, 0, 14)
	case core.Semimonthly:
		// Pay on the 1st and the 15th.
		first := clampedDay(base.Year(), base.Month(), 1)
		fifteenth := clampedDay(base.Year(), base.Month(), 15)
		switch {
		case first.After(base):
			return first
		case fifteenth.After(base):
			return fifteenth
		default:
			next := base.AddDate(0, 1, 0)
			return clampedDay(next.Year(), next.Month(), 1)
		}
	default: // monthly
		return base.AddDate(0, 1, 0)
	}
}

// clampedDay builds a date clamping day to the month's last day.
func clampedDay(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
