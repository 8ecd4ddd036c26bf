package ledger

import (
	"context"

	"budgetd/internal/core"
	"budgetd/internal/metrics"
)

// Summary returns the Ready-to-Assign snapshot for one (user, month).
//
// Summaries are read-only and may be served from a TTL cache with bounded
// staleness; concurrent misses for the same key collapse into one store
// read. Mutating operations invalidate the affected entries and never read
// through this path.
func (s *Service) Summary(ctx context.Context, userID string, month core.Month) (core.MonthSummary, error) {
	if userID == "" {
		return core.MonthSummary{}, core.ErrEmptyUserID
	}
	if err := month.Validate(); err != nil {
		return core.MonthSummary{}, err
	}

	key := summaryKey(userID, month)
	if cached, ok := s.summaries.Get(key); ok {
		metrics.SummaryCacheHits.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.SummaryCacheHits.WithLabelValues("miss").Inc()

	v, err, _ := s.flight.Do(key, func() (any, error) {
		sum, err := s.computeSummary(ctx, userID, month)
		if err != nil {
			return core.MonthSummary{}, err
		}
		s.summaries.Set(key, sum)
		return sum, nil
	})
	if err != nil {
		return core.MonthSummary{}, err
	}
	return v.(core.MonthSummary), nil
}

func (s *Service) computeSummary(ctx context.Context, userID string, month core.Month) (core.MonthSummary, error) {
	opCtx, cancel := s.bound(ctx)
	defer cancel()

	bm, _, err := s.loadOrInitMonth(opCtx, userID, month)
	if err != nil {
		return core.MonthSummary{}, err
	}

	items, err := s.store.ListBudgetItems(opCtx, userID, month)
	if err != nil {
		return core.MonthSummary{}, err
	}
	spent, err := s.spentByCategory(opCtx, userID, month)
	if err != nil {
		return core.MonthSummary{}, err
	}
	carry, err := s.carriedInto(ctx, userID, month)
	if err != nil {
		return core.MonthSummary{}, err
	}

	cats, err := s.store.ListCategories(opCtx, userID)
	if err != nil {
		return core.MonthSummary{}, err
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	sum := core.MonthSummary{
		Month:               month,
		ExpectedIncomeCents: bm.ExpectedIncomeCents,
		ReceivedIncomeCents: bm.ReceivedIncomeCents,
		OverspendCarryCents: carry.OverspendCents,
	}
	for _, v := range carry.Leftovers {
		sum.LeftoverCents += v
	}
	for _, it := range items {
		sum.AssignedCents += it.AssignedCents
		sum.Categories = append(sum.Categories, core.CategoryLine{
			CategoryID:    it.CategoryID,
			Name:          names[it.CategoryID],
			AssignedCents: it.AssignedCents,
			SpentCents:    spent[it.CategoryID],
			LeftoverCents: carry.Leftovers[it.CategoryID],
		})
	}
	sum.RTACents = s.effectiveIncome(bm) + sum.LeftoverCents - sum.OverspendCarryCents - sum.AssignedCents
	return sum, nil
}
