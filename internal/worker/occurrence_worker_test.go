package worker

import (
	"context"
	"testing"
	"time"

	"budgetd/internal/core"
	"budgetd/internal/ledger"
	"budgetd/internal/storage"
	"budgetd/internal/storage/memory"
)

type capturePublisher struct {
	overdue []core.BillOccurrence
}

func (p *capturePublisher) TransactionCreated(ctx context.Context, tx core.Transaction) error {
	return nil
}

func (p *capturePublisher) BillOccurrenceOverdue(ctx context.Context, o core.BillOccurrence) error {
	p.overdue = append(p.overdue, o)
	return nil
}

func newTestService(t *testing.T) (*ledger.Service, *memory.Store, *capturePublisher) {
	t.Helper()
	store := memory.New()
	pub := &capturePublisher{}
	svc := ledger.NewService(store, pub, ledger.Options{
		Clock: func() time.Time { return time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC) },
	})
	return svc, store, pub
}

func TestRunOnce_GeneratesOccurrences(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, core.Bill{
		UserID:      "alice",
		Name:        "Rent",
		AmountCents: 95000,
		Frequency:   core.Monthly,
		DayOfMonth:  1,
	})
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	if _, err := svc.CreateIncomeSource(ctx, core.IncomeSource{
		UserID:      "alice",
		Name:        "Salary",
		Frequency:   core.Monthly,
		AmountCents: 400000,
		Active:      true,
	}); err != nil {
		t.Fatalf("CreateIncomeSource: %v", err)
	}

	w := NewOccurrenceWorker(svc, time.Hour)
	if err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	occs, err := store.ListBillOccurrences(ctx, "alice", bill.ID)
	if err != nil {
		t.Fatalf("ListBillOccurrences: %v", err)
	}
	if len(occs) != 1 {
		t.Fatalf("bill occurrences = %d, want 1", len(occs))
	}
	wantDue := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !occs[0].DueDate.Equal(wantDue) {
		t.Errorf("bill occurrence due = %v, want %v", occs[0].DueDate, wantDue)
	}
	if occs[0].Status != core.BillUpcoming {
		t.Errorf("bill occurrence status = %s, want %s", occs[0].Status, core.BillUpcoming)
	}

	incomeOccs, err := store.ListIncomeOccurrences(ctx, "alice")
	if err != nil {
		t.Fatalf("ListIncomeOccurrences: %v", err)
	}
	if len(incomeOccs) != 1 {
		t.Fatalf("income occurrences = %d, want 1", len(incomeOccs))
	}
	if incomeOccs[0].Status != core.OccurrenceScheduled {
		t.Errorf("income occurrence status = %s, want %s", incomeOccs[0].Status, core.OccurrenceScheduled)
	}

	// A second pass is a no-op while occurrences are still open.
	if err := w.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	occs, _ = store.ListBillOccurrences(ctx, "alice", bill.ID)
	if len(occs) != 1 {
		t.Errorf("bill occurrences after second pass = %d, want 1", len(occs))
	}
	incomeOccs, _ = store.ListIncomeOccurrences(ctx, "alice")
	if len(incomeOccs) != 1 {
		t.Errorf("income occurrences after second pass = %d, want 1", len(incomeOccs))
	}
}

func TestRunOnce_MarksOverdue(t *testing.T) {
	svc, store, pub := newTestService(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, core.Bill{
		UserID:      "bob",
		Name:        "Internet",
		AmountCents: 6000,
		Frequency:   core.Monthly,
		DayOfMonth:  1,
	})
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}

	// An upcoming occurrence whose due date has passed.
	stale := core.BillOccurrence{
		ID:      "occ-stale",
		UserID:  "bob",
		BillID:  bill.ID,
		DueDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Status:  core.BillUpcoming,
	}
	if err := store.Apply(ctx, storage.ChangeSet{UserID: "bob", BillOccurrences: []core.BillOccurrence{stale}}); err != nil {
		t.Fatalf("seed occurrence: %v", err)
	}

	w := NewOccurrenceWorker(svc, time.Hour)
	if err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	occs, err := store.ListBillOccurrences(ctx, "bob", bill.ID)
	if err != nil {
		t.Fatalf("ListBillOccurrences: %v", err)
	}
	if len(occs) != 1 {
		t.Fatalf("bill occurrences = %d, want 1", len(occs))
	}
	if occs[0].Status != core.BillOverdue {
		t.Errorf("occurrence status = %s, want %s", occs[0].Status, core.BillOverdue)
	}
	if len(pub.overdue) != 1 {
		t.Errorf("published overdue events = %d, want 1", len(pub.overdue))
	}
}
