package ledger

import (
	"context"
	"errors"
	"testing"

	"budgetd/internal/core"
)

func TestComputeRollover_LeftoverCarries(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedMonthlyIncome(t, store, "u1", 400_000)
	seedCategory(t, store, "u1", "cat-groceries", "Groceries", true)

	// Assign $500 in July, spend $450.
	if _, err := svc.Assign(ctx, "u1", "2026-07", "cat-groceries", 50_000, false); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	seedExpense(t, store, "u1", "cat-groceries", "2026-07", 45_000, 12)

	ro, err := svc.ComputeRollover(ctx, "u1", "2026-07")
	if err != nil {
		t.Fatalf("ComputeRollover() error = %v", err)
	}
	if got := ro.Leftovers["cat-groceries"]; got != 5_000 {
		t.Errorf("leftover = %d, want 5000", got)
	}
	if ro.OverspendCents != 0 {
		t.Errorf("OverspendCents = %d, want 0", ro.OverspendCents)
	}

	// The carry shows up in August: it both raises the RTA pool and seeds
	// the category's item.
	res, err := svc.Assign(ctx, "u1", "2026-08", "cat-groceries", 50_000, false)
	if err != nil {
		t.Fatalf("August Assign() error = %v", err)
	}
	if res.NewRTACents != 355_000 {
		t.Errorf("August NewRTACents = %d, want 355000 (400000 + 5000 carry - 50000)", res.NewRTACents)
	}
	item, err := store.GetBudgetItem(ctx, "u1", "2026-08", "cat-groceries")
	if err != nil {
		t.Fatalf("GetBudgetItem() error = %v", err)
	}
	if item.LeftoverFromPrevCents != 5_000 {
		t.Errorf("LeftoverFromPrevCents = %d, want 5000", item.LeftoverFromPrevCents)
	}
}

func TestComputeRollover_NonRolloverReturnsToPool(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedMonthlyIncome(t, store, "u1", 400_000)
	seedCategory(t, store, "u1", "cat-fun", "Fun", false)

	if _, err := svc.Assign(ctx, "u1", "2026-07", "cat-fun", 30_000, false); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	seedExpense(t, store, "u1", "cat-fun", "2026-07", 10_000, 20)

	ro, err := svc.ComputeRollover(ctx, "u1", "2026-07")
	if err != nil {
		t.Fatalf("ComputeRollover() error = %v", err)
	}
	if len(ro.Leftovers) != 0 {
		t.Errorf("Leftovers = %v, want none for a non-rollover category", ro.Leftovers)
	}

	// August starts from the plain expected income: the unspent $200
	// evaporated back into July's own pool, it does not carry.
	sum, err := svc.Summary(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.LeftoverCents != 0 || sum.RTACents != 400_000 {
		t.Errorf("August = leftover %d RTA %d, want 0 / 400000", sum.LeftoverCents, sum.RTACents)
	}
}

func TestComputeRollover_OverspendReducesNextPool(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedMonthlyIncome(t, store, "u1", 400_000)
	seedCategory(t, store, "u1", "cat-groceries", "Groceries", true)

	if _, err := svc.Assign(ctx, "u1", "2026-07", "cat-groceries", 10_000, false); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	seedExpense(t, store, "u1", "cat-groceries", "2026-07", 15_000, 12)

	ro, err := svc.ComputeRollover(ctx, "u1", "2026-07")
	if err != nil {
		t.Fatalf("ComputeRollover() error = %v", err)
	}
	// Overspend never carries as a negative leftover.
	if got, ok := ro.Leftovers["cat-groceries"]; ok {
		t.Errorf("leftover = %d, want absent", got)
	}
	if ro.OverspendCents != 5_000 {
		t.Errorf("OverspendCents = %d, want 5000", ro.OverspendCents)
	}

	sum, err := svc.Summary(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.OverspendCarryCents != 5_000 {
		t.Errorf("OverspendCarryCents = %d, want 5000", sum.OverspendCarryCents)
	}
	if sum.RTACents != 395_000 {
		t.Errorf("August RTACents = %d, want 395000", sum.RTACents)
	}
}

func TestComputeRollover_MixedCategories(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedMonthlyIncome(t, store, "u1", 400_000)
	seedCategory(t, store, "u1", "cat-a", "A", true)
	seedCategory(t, store, "u1", "cat-b", "B", true)
	seedCategory(t, store, "u1", "cat-c", "C", false)

	for cat, amount := range map[string]int64{"cat-a": 20_000, "cat-b": 10_000, "cat-c": 30_000} {
		if _, err := svc.Assign(ctx, "u1", "2026-07", cat, amount, false); err != nil {
			t.Fatalf("Assign(%s) error = %v", cat, err)
		}
	}
	seedExpense(t, store, "u1", "cat-a", "2026-07", 12_000, 3)  // leftover 8000
	seedExpense(t, store, "u1", "cat-b", "2026-07", 14_000, 5)  // overspend 4000
	seedExpense(t, store, "u1", "cat-c", "2026-07", 1_000, 7)   // no rollover

	ro, err := svc.ComputeRollover(ctx, "u1", "2026-07")
	if err != nil {
		t.Fatalf("ComputeRollover() error = %v", err)
	}
	if got := ro.Leftovers["cat-a"]; got != 8_000 {
		t.Errorf("cat-a leftover = %d, want 8000", got)
	}
	if _, ok := ro.Leftovers["cat-b"]; ok {
		t.Error("cat-b carried a leftover despite overspending")
	}
	if _, ok := ro.Leftovers["cat-c"]; ok {
		t.Error("cat-c carried a leftover without rollover enabled")
	}
	if ro.OverspendCents != 4_000 {
		t.Errorf("OverspendCents = %d, want 4000", ro.OverspendCents)
	}
}

// The rollover is derived from transactions at read time, so a late
// correction to a closed month is reflected on the next computation.
func TestComputeRollover_ReflectsLateTransactions(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedMonthlyIncome(t, store, "u1", 400_000)
	seedCategory(t, store, "u1", "cat-a", "A", true)

	if _, err := svc.Assign(ctx, "u1", "2026-07", "cat-a", 50_000, false); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	seedExpense(t, store, "u1", "cat-a", "2026-07", 45_000, 12)

	ro, err := svc.ComputeRollover(ctx, "u1", "2026-07")
	if err != nil {
		t.Fatalf("ComputeRollover() error = %v", err)
	}
	if got := ro.Leftovers["cat-a"]; got != 5_000 {
		t.Fatalf("leftover = %d, want 5000", got)
	}

	// A receipt surfaces weeks later and lands in July.
	seedExpense(t, store, "u1", "cat-a", "2026-07", 3_000, 28)

	ro, err = svc.ComputeRollover(ctx, "u1", "2026-07")
	if err != nil {
		t.Fatalf("recompute error = %v", err)
	}
	if got := ro.Leftovers["cat-a"]; got != 2_000 {
		t.Errorf("recomputed leftover = %d, want 2000", got)
	}
}

func TestComputeRollover_EmptyMonth(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ro, err := svc.ComputeRollover(context.Background(), "u1", "2026-07")
	if err != nil {
		t.Fatalf("ComputeRollover() error = %v", err)
	}
	if len(ro.Leftovers) != 0 || ro.OverspendCents != 0 {
		t.Errorf("rollover = %+v, want empty", ro)
	}
}

func TestComputeRollover_Validation(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	if _, err := svc.ComputeRollover(context.Background(), "", "2026-07"); !errors.Is(err, core.ErrEmptyUserID) {
		t.Errorf("empty user error = %v, want ErrEmptyUserID", err)
	}
	if _, err := svc.ComputeRollover(context.Background(), "u1", "bogus"); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("bad month error = %v, want ErrInvalidMonth", err)
	}
}
