package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetd/internal/core"
	"budgetd/internal/storage"
)

func TestApply_VersionedMonthWrite(t *testing.T) {
	store := New()
	ctx := context.Background()

	bm := core.BudgetMonth{ID: "bm-1", UserID: "u1", Month: "2026-08", ExpectedIncomeCents: 400_000}
	err := store.Apply(ctx, storage.ChangeSet{UserID: "u1", BudgetMonth: &bm, ExpectedMonthVersion: 0})
	if err != nil {
		t.Fatalf("create Apply() error = %v", err)
	}
	got, err := store.GetBudgetMonth(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("GetBudgetMonth() error = %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1 after create", got.Version)
	}

	got.ReceivedIncomeCents = 150_000
	err = store.Apply(ctx, storage.ChangeSet{UserID: "u1", BudgetMonth: &got, ExpectedMonthVersion: 1})
	if err != nil {
		t.Fatalf("update Apply() error = %v", err)
	}
	got, _ = store.GetBudgetMonth(ctx, "u1", "2026-08")
	if got.Version != 2 || got.ReceivedIncomeCents != 150_000 {
		t.Errorf("month = %+v, want version 2 with received 150000", got)
	}
}

func TestApply_VersionConflict(t *testing.T) {
	store := New()
	ctx := context.Background()

	bm := core.BudgetMonth{ID: "bm-1", UserID: "u1", Month: "2026-08"}
	if err := store.Apply(ctx, storage.ChangeSet{UserID: "u1", BudgetMonth: &bm}); err != nil {
		t.Fatalf("create Apply() error = %v", err)
	}

	tests := []struct {
		name            string
		expectedVersion int64
	}{
		{"stale version", 0},
		{"future version", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Apply(ctx, storage.ChangeSet{
				UserID: "u1", BudgetMonth: &bm, ExpectedMonthVersion: tt.expectedVersion,
			})
			var conflict *core.ConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("Apply() error = %v, want ConflictError", err)
			}
			if conflict.ActualVersion != 1 {
				t.Errorf("ActualVersion = %d, want 1", conflict.ActualVersion)
			}
		})
	}

	// Guarding a creation against a month that does not exist.
	ghost := core.BudgetMonth{ID: "bm-2", UserID: "u1", Month: "2026-09"}
	err := store.Apply(ctx, storage.ChangeSet{UserID: "u1", BudgetMonth: &ghost, ExpectedMonthVersion: 3})
	var conflict *core.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Apply() error = %v, want ConflictError", err)
	}
	if conflict.ActualVersion != 0 {
		t.Errorf("ActualVersion = %d, want 0", conflict.ActualVersion)
	}
}

func TestApply_WholeSetLands(t *testing.T) {
	store := New()
	ctx := context.Background()

	bm := core.BudgetMonth{ID: "bm-1", UserID: "u1", Month: "2026-08"}
	cs := storage.ChangeSet{
		UserID:      "u1",
		BudgetMonth: &bm,
		Items: []core.BudgetItem{{
			ID: "it-1", UserID: "u1", Month: "2026-08", CategoryID: "cat-a", AssignedCents: 5_000,
		}},
		Transactions: []core.Transaction{{
			ID: "tx-1", UserID: "u1", AmountCents: -5_000, Type: core.TxExpense,
			CategoryID: "cat-a", BudgetMonth: "2026-08",
			Date: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		}},
		BillOccurrences: []core.BillOccurrence{{
			ID: "bo-1", UserID: "u1", BillID: "bill-1", Status: core.BillPaid,
			DueDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		}},
		BillPayments: []core.BillPayment{{
			ID: "bp-1", UserID: "u1", BillID: "bill-1", TxID: "tx-1", AmountCents: 5_000,
		}},
	}
	if err := store.Apply(ctx, cs); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if _, err := store.GetBudgetItem(ctx, "u1", "2026-08", "cat-a"); err != nil {
		t.Errorf("item missing after Apply: %v", err)
	}
	txs, _ := store.ListTransactions(ctx, "u1", "2026-08")
	if len(txs) != 1 {
		t.Errorf("len(txs) = %d, want 1", len(txs))
	}
	occs, _ := store.ListBillOccurrences(ctx, "u1", "bill-1")
	if len(occs) != 1 || occs[0].Status != core.BillPaid {
		t.Errorf("occurrences = %+v", occs)
	}
}

func TestGetters_NotFound(t *testing.T) {
	store := New()
	ctx := context.Background()

	var nf *core.NotFoundError
	if _, err := store.GetBudgetMonth(ctx, "u1", "2026-08"); !errors.As(err, &nf) {
		t.Errorf("GetBudgetMonth error = %v, want NotFoundError", err)
	}
	if _, err := store.GetCategory(ctx, "u1", "cat-x"); !errors.As(err, &nf) {
		t.Errorf("GetCategory error = %v, want NotFoundError", err)
	}
	if _, err := store.GetBill(ctx, "u1", "bill-x"); !errors.As(err, &nf) {
		t.Errorf("GetBill error = %v, want NotFoundError", err)
	}
	if _, err := store.GetIncomeOccurrence(ctx, "u1", "occ-x"); !errors.As(err, &nf) {
		t.Errorf("GetIncomeOccurrence error = %v, want NotFoundError", err)
	}
}

func TestListActiveIncomeSources_FiltersInactive(t *testing.T) {
	store := New()
	ctx := context.Background()
	active := core.IncomeSource{ID: "s1", UserID: "u1", Name: "Salary", Frequency: core.Monthly, AmountCents: 100, Active: true}
	retired := core.IncomeSource{ID: "s2", UserID: "u1", Name: "Old Job", Frequency: core.Monthly, AmountCents: 100, Active: false}
	if err := store.CreateIncomeSource(ctx, active); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateIncomeSource(ctx, retired); err != nil {
		t.Fatal(err)
	}

	got, err := store.ListActiveIncomeSources(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActiveIncomeSources() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("sources = %+v, want only s1", got)
	}
}

func TestListUserIDs(t *testing.T) {
	store := New()
	ctx := context.Background()
	if err := store.CreateBill(ctx, core.Bill{ID: "b1", UserID: "u2", Name: "Rent", AmountCents: 1, Frequency: core.Monthly, DayOfMonth: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateIncomeSource(ctx, core.IncomeSource{ID: "s1", UserID: "u1", Name: "Salary", Frequency: core.Monthly, AmountCents: 1, Active: true}); err != nil {
		t.Fatal(err)
	}

	ids, err := store.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "u1" || ids[1] != "u2" {
		t.Errorf("ids = %v, want [u1 u2]", ids)
	}
}

func TestApply_CancelledContext(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Apply(ctx, storage.ChangeSet{UserID: "u1"})
	var pe *core.PersistenceError
	if !errors.As(err, &pe) {
		t.Errorf("Apply() error = %v, want PersistenceError", err)
	}
}
