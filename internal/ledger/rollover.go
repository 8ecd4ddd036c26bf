package ledger

import (
	"context"

	"budgetd/internal/core"
)

// Rollover is the carry-forward picture of one closed (or closing) month:
// what each rollover category hands to the next month, and the total
// overspend that reduces the next month's Ready-to-Assign pool.
type Rollover struct {
	Month          core.Month
	Leftovers      map[string]int64 // categoryID -> cents carried forward
	OverspendCents int64
}

// ComputeRollover derives the carry-forward from month into month+1.
//
// For categories with rollover enabled: leftover = max(assigned - spent, 0);
// overspend is never carried as negative leftover, it accumulates into
// OverspendCents and reduces the next month's RTA pool instead. Categories
// without rollover contribute nothing: their unspent allocation returns to
// the general pool of the source month.
//
// The result is read-derived. Spent amounts come from the month's expense
// transactions, not from the stored items, so a late mutation of the source
// month is always reflected on the next call.
func (s *Service) ComputeRollover(ctx context.Context, userID string, month core.Month) (Rollover, error) {
	ro := Rollover{Month: month, Leftovers: make(map[string]int64)}
	if userID == "" {
		return ro, core.ErrEmptyUserID
	}
	if err := month.Validate(); err != nil {
		return ro, err
	}

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	items, err := s.store.ListBudgetItems(opCtx, userID, month)
	if err != nil {
		return ro, err
	}
	if len(items) == 0 {
		return ro, nil
	}

	spent, err := s.spentByCategory(opCtx, userID, month)
	if err != nil {
		return ro, err
	}

	cats, err := s.store.ListCategories(opCtx, userID)
	if err != nil {
		return ro, err
	}
	rollover := make(map[string]bool, len(cats))
	for _, c := range cats {
		rollover[c.ID] = c.Rollover
	}

	for _, it := range items {
		if !rollover[it.CategoryID] {
			continue
		}
		diff := it.AssignedCents - spent[it.CategoryID]
		if diff >= 0 {
			if diff > 0 {
				ro.Leftovers[it.CategoryID] = diff
			}
		} else {
			ro.OverspendCents += -diff
		}
	}
	return ro, nil
}

// spentByCategory sums expense transactions per category for a month.
// Expense amounts are stored negative; the sums returned are positive
// spent magnitudes.
func (s *Service) spentByCategory(ctx context.Context, userID string, month core.Month) (map[string]int64, error) {
	txs, err := s.store.ListTransactions(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	spent := make(map[string]int64)
	for _, tx := range txs {
		if tx.Type != core.TxExpense || tx.CategoryID == "" {
			continue
		}
		spent[tx.CategoryID] += -tx.AmountCents
	}
	return spent, nil
}

// carriedInto returns the rollover feeding month: the carry-forward
// computed from month-1.
func (s *Service) carriedInto(ctx context.Context, userID string, month core.Month) (Rollover, error) {
	return s.ComputeRollover(ctx, userID, month.Prev())
}
