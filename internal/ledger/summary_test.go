package ledger

import (
	"context"
	"sort"
	"testing"
)

func TestSummary_Composition(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedMonthlyIncome(t, store, "u1", 400_000)
	seedCategory(t, store, "u1", "cat-groceries", "Groceries", true)
	seedCategory(t, store, "u1", "cat-fun", "Fun", false)
	seedOccurrence(t, store, "u1", "occ-1", 150_000)

	if _, err := svc.Assign(ctx, "u1", "2026-08", "cat-groceries", 50_000, false); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if _, err := svc.Assign(ctx, "u1", "2026-08", "cat-fun", 20_000, false); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if _, err := svc.ReceiveIncome(ctx, "u1", "occ-1", ReceiveIncomeOptions{}); err != nil {
		t.Fatalf("ReceiveIncome() error = %v", err)
	}
	seedExpense(t, store, "u1", "cat-groceries", "2026-08", 12_000, 10)
	svc.invalidateSummaries("u1", "2026-08")

	sum, err := svc.Summary(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.ExpectedIncomeCents != 400_000 {
		t.Errorf("ExpectedIncomeCents = %d, want 400000", sum.ExpectedIncomeCents)
	}
	if sum.ReceivedIncomeCents != 150_000 {
		t.Errorf("ReceivedIncomeCents = %d, want 150000", sum.ReceivedIncomeCents)
	}
	if sum.AssignedCents != 70_000 {
		t.Errorf("AssignedCents = %d, want 70000", sum.AssignedCents)
	}
	// Additive policy: 400000 + 150000 - 70000.
	if sum.RTACents != 480_000 {
		t.Errorf("RTACents = %d, want 480000", sum.RTACents)
	}

	if len(sum.Categories) != 2 {
		t.Fatalf("len(Categories) = %d, want 2", len(sum.Categories))
	}
	var lines []string
	byID := map[string]int64{}
	for _, l := range sum.Categories {
		lines = append(lines, l.Name)
		byID[l.CategoryID] = l.SpentCents
	}
	sort.Strings(lines)
	if lines[0] != "Fun" || lines[1] != "Groceries" {
		t.Errorf("category names = %v", lines)
	}
	if byID["cat-groceries"] != 12_000 {
		t.Errorf("groceries SpentCents = %d, want 12000", byID["cat-groceries"])
	}
	if byID["cat-fun"] != 0 {
		t.Errorf("fun SpentCents = %d, want 0", byID["cat-fun"])
	}
}

func TestSummary_EmptyMonth(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	sum, err := svc.Summary(context.Background(), "u1", "2026-08")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.RTACents != 0 || sum.AssignedCents != 0 || len(sum.Categories) != 0 {
		t.Errorf("empty month summary = %+v, want all zero", sum)
	}
}

// Summaries are served from cache until a mutating operation invalidates
// them; a direct store write (as a stand-in for a slow replica) is allowed
// to go stale within the TTL.
func TestSummary_CacheAndInvalidation(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedMonthlyIncome(t, store, "u1", 400_000)
	seedCategory(t, store, "u1", "cat-a", "A", false)

	if _, err := svc.Assign(ctx, "u1", "2026-08", "cat-a", 50_000, false); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	first, err := svc.Summary(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if first.RTACents != 350_000 {
		t.Fatalf("RTACents = %d, want 350000", first.RTACents)
	}

	// A write that bypasses the service does not bust the cache.
	seedExpense(t, store, "u1", "cat-a", "2026-08", 10_000, 10)
	cached, err := svc.Summary(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("cached Summary() error = %v", err)
	}
	if len(cached.Categories) != 1 || cached.Categories[0].SpentCents != 0 {
		t.Errorf("cached summary picked up an out-of-band write: %+v", cached.Categories)
	}

	// A service write invalidates, so the next read recomputes and now
	// sees both the new assignment and the earlier out-of-band spend.
	if _, err := svc.Assign(ctx, "u1", "2026-08", "cat-a", 60_000, false); err != nil {
		t.Fatalf("second Assign() error = %v", err)
	}
	fresh, err := svc.Summary(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("fresh Summary() error = %v", err)
	}
	if fresh.AssignedCents != 60_000 {
		t.Errorf("AssignedCents = %d, want 60000", fresh.AssignedCents)
	}
	if fresh.Categories[0].SpentCents != 10_000 {
		t.Errorf("SpentCents = %d, want 10000 after recompute", fresh.Categories[0].SpentCents)
	}
}

// A write to month M also invalidates M+1: its carried leftovers depend on M.
func TestSummary_NextMonthInvalidation(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedMonthlyIncome(t, store, "u1", 400_000)
	seedCategory(t, store, "u1", "cat-a", "A", true)

	if _, err := svc.Assign(ctx, "u1", "2026-07", "cat-a", 50_000, false); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	aug, err := svc.Summary(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if aug.LeftoverCents != 50_000 {
		t.Fatalf("LeftoverCents = %d, want 50000 (nothing spent in July)", aug.LeftoverCents)
	}

	// Shrinking July's assignment shrinks August's carry; the cached
	// August entry must not survive the July write.
	if _, err := svc.Assign(ctx, "u1", "2026-07", "cat-a", 20_000, false); err != nil {
		t.Fatalf("July reassign error = %v", err)
	}
	aug, err = svc.Summary(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if aug.LeftoverCents != 20_000 {
		t.Errorf("LeftoverCents = %d, want 20000 after July reassignment", aug.LeftoverCents)
	}
}
