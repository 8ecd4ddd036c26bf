package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"budgetd/internal/core"
	"budgetd/internal/storage"
)

// AssignResult reports the outcome of an accepted assignment.
type AssignResult struct {
	NewRTACents  int64
	OverAssigned bool
}

// Assign sets the allocation of a category for a month.
//
// The budget month is created lazily on first assignment, with expected
// income derived from the user's active income sources via the configured
// monthly converter. If the prospective Ready-to-Assign would go negative
// and neither the month's allow-over-assign flag nor overrideAllow is set,
// the call is rejected with OverAssignmentError carrying the exact
// shortfall, and no state changes. Assignment alone never creates a
// transaction.
func (s *Service) Assign(ctx context.Context, userID string, month core.Month, categoryID string, amountCents int64, overrideAllow bool) (AssignResult, error) {
	if userID == "" {
		return AssignResult{}, core.ErrEmptyUserID
	}
	if err := month.Validate(); err != nil {
		return AssignResult{}, err
	}
	if amountCents < 0 {
		return AssignResult{}, core.ErrInvalidAmount
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.store.GetCategory(opCtx, userID, categoryID); err != nil {
		return AssignResult{}, err
	}

	bm, expectedVersion, err := s.loadOrInitMonth(opCtx, userID, month)
	if err != nil {
		return AssignResult{}, err
	}

	items, err := s.store.ListBudgetItems(opCtx, userID, month)
	if err != nil {
		return AssignResult{}, err
	}

	carry, err := s.carriedInto(ctx, userID, month)
	if err != nil {
		return AssignResult{}, err
	}
	var leftoverSum int64
	for _, v := range carry.Leftovers {
		leftoverSum += v
	}

	// Total assigned with the target category replaced by the new amount.
	assigned := amountCents
	var target *core.BudgetItem
	for i, it := range items {
		if it.CategoryID == categoryID {
			target = &items[i]
			continue
		}
		assigned += it.AssignedCents
	}

	rta := s.effectiveIncome(bm) + leftoverSum - carry.OverspendCents - assigned
	if rta < 0 && !bm.AllowOverAssign && !overrideAllow {
		return AssignResult{}, &core.OverAssignmentError{Month: month, ShortfallCents: -rta}
	}

	item := core.BudgetItem{
		ID:         uuid.NewString(),
		UserID:     userID,
		Month:      month,
		CategoryID: categoryID,
		// First assignment materializes the carry for this category.
		LeftoverFromPrevCents: carry.Leftovers[categoryID],
	}
	if target != nil {
		// Existing item: only the assignment moves; spend history stays.
		item = *target
	}
	item.AssignedCents = amountCents

	cs := storage.ChangeSet{
		UserID:               userID,
		BudgetMonth:          &bm,
		ExpectedMonthVersion: expectedVersion,
		Items:                []core.BudgetItem{item},
	}
	if err := s.apply(ctx, cs); err != nil {
		return AssignResult{}, err
	}
	s.invalidateSummaries(userID, month)

	slog.InfoContext(ctx, "Assignment accepted",
		"user_id", userID,
		"month", month,
		"category_id", categoryID,
		"amount_cents", amountCents,
		"new_rta_cents", rta,
		"over_assigned", rta < 0)

	return AssignResult{NewRTACents: rta, OverAssigned: rta < 0}, nil
}

// SetAllowOverAssign flips the month-wide over-assignment flag.
func (s *Service) SetAllowOverAssign(ctx context.Context, userID string, month core.Month, allow bool) error {
	if userID == "" {
		return core.ErrEmptyUserID
	}
	if err := month.Validate(); err != nil {
		return err
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	bm, expectedVersion, err := s.loadOrInitMonth(opCtx, userID, month)
	if err != nil {
		return err
	}
	bm.AllowOverAssign = allow

	err = s.apply(ctx, storage.ChangeSet{
		UserID:               userID,
		BudgetMonth:          &bm,
		ExpectedMonthVersion: expectedVersion,
	})
	if err != nil {
		return err
	}
	s.invalidateSummaries(userID, month)
	return nil
}

// RecomputeExpectedIncome re-derives a month's expected income from the
// current active income sources. Expected income is otherwise captured once,
// when the month record is created, so source changes made afterwards only
// reach an existing month through this call. Returns the new expected total.
func (s *Service) RecomputeExpectedIncome(ctx context.Context, userID string, month core.Month) (int64, error) {
	if userID == "" {
		return 0, core.ErrEmptyUserID
	}
	if err := month.Validate(); err != nil {
		return 0, err
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	bm, expectedVersion, err := s.loadOrInitMonth(opCtx, userID, month)
	if err != nil {
		return 0, err
	}
	expected, err := s.expectedIncome(opCtx, userID)
	if err != nil {
		return 0, err
	}
	if expectedVersion > 0 && expected == bm.ExpectedIncomeCents {
		return expected, nil
	}
	bm.ExpectedIncomeCents = expected

	err = s.apply(ctx, storage.ChangeSet{
		UserID:               userID,
		BudgetMonth:          &bm,
		ExpectedMonthVersion: expectedVersion,
	})
	if err != nil {
		return 0, err
	}
	s.invalidateSummaries(userID, month)

	slog.InfoContext(ctx, "Expected income recomputed",
		"user_id", userID,
		"month", month,
		"expected_income_cents", expected)
	return expected, nil
}

// loadOrInitMonth fetches the budget month record, synthesizing a fresh one
// when the month has never been touched. The returned expected version is 0
// for a synthesized month (creation) and the stored version otherwise.
func (s *Service) loadOrInitMonth(ctx context.Context, userID string, month core.Month) (core.BudgetMonth, int64, error) {
	bm, err := s.store.GetBudgetMonth(ctx, userID, month)
	if err == nil {
		return bm, bm.Version, nil
	}
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		return core.BudgetMonth{}, 0, err
	}

	expected, err := s.expectedIncome(ctx, userID)
	if err != nil {
		return core.BudgetMonth{}, 0, err
	}
	return core.BudgetMonth{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Month:               month,
		ExpectedIncomeCents: expected,
	}, 0, nil
}

// expectedIncome sums the monthly equivalents of all active income sources.
func (s *Service) expectedIncome(ctx context.Context, userID string) (int64, error) {
	sources, err := s.store.ListActiveIncomeSources(ctx, userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, src := range sources {
		total += s.opts.Convert(src.Frequency, src.AmountCents)
	}
	return total, nil
}

// effectiveIncome applies the income policy to a month's income picture.
func (s *Service) effectiveIncome(bm core.BudgetMonth) int64 {
	switch s.opts.IncomePolicy {
	case IncomePolicyRealized:
		return bm.ReceivedIncomeCents
	default:
		return bm.ExpectedIncomeCents + bm.ReceivedIncomeCents
	}
}
