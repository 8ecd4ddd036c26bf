package ledger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"budgetd/internal/core"
)

func seedOccurrence(t *testing.T, store interface {
	CreateIncomeOccurrence(context.Context, core.IncomeOccurrence) error
}, userID, id string, netCents int64) {
	t.Helper()
	err := store.CreateIncomeOccurrence(context.Background(), core.IncomeOccurrence{
		ID:          id,
		UserID:      userID,
		SourceID:    "src-" + userID,
		ScheduledAt: testNow,
		NetCents:    netCents,
		Status:      core.OccurrenceScheduled,
	})
	if err != nil {
		t.Fatalf("seed occurrence %s: %v", id, err)
	}
}

func TestReceiveIncome(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedMonthlyIncome(t, store, "u1", 400_000)
	seedOccurrence(t, store, "u1", "occ-1", 150_000)

	res, err := svc.ReceiveIncome(ctx, "u1", "occ-1", ReceiveIncomeOptions{})
	if err != nil {
		t.Fatalf("ReceiveIncome() error = %v", err)
	}
	if res.RTAIncreaseCents != 150_000 {
		t.Errorf("RTAIncreaseCents = %d, want 150000", res.RTAIncreaseCents)
	}
	if res.Transaction.Type != core.TxIncome || res.Transaction.AmountCents != 150_000 {
		t.Errorf("transaction = %+v, want income of 150000", res.Transaction)
	}
	if res.Transaction.BudgetMonth != "2026-08" {
		t.Errorf("BudgetMonth = %s, want 2026-08 (calendar month of receipt)", res.Transaction.BudgetMonth)
	}
	if res.Transaction.SourceID != "src-u1" {
		t.Errorf("SourceID = %s, want src-u1", res.Transaction.SourceID)
	}
	if res.BudgetMonth.ReceivedIncomeCents != 150_000 {
		t.Errorf("ReceivedIncomeCents = %d, want 150000", res.BudgetMonth.ReceivedIncomeCents)
	}

	occ, err := store.GetIncomeOccurrence(ctx, "u1", "occ-1")
	if err != nil {
		t.Fatalf("GetIncomeOccurrence() error = %v", err)
	}
	if occ.Status != core.OccurrenceReceived {
		t.Errorf("Status = %s, want RECEIVED", occ.Status)
	}
	if occ.TxID != res.Transaction.ID {
		t.Errorf("TxID = %s, want %s", occ.TxID, res.Transaction.ID)
	}
	if occ.PostedAt.IsZero() {
		t.Error("PostedAt left zero after receipt")
	}
}

func TestReceiveIncome_Idempotent(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedOccurrence(t, store, "u1", "occ-1", 150_000)

	if _, err := svc.ReceiveIncome(ctx, "u1", "occ-1", ReceiveIncomeOptions{}); err != nil {
		t.Fatalf("first ReceiveIncome() error = %v", err)
	}

	before := store.Snapshot()
	_, err := svc.ReceiveIncome(ctx, "u1", "occ-1", ReceiveIncomeOptions{})
	var ap *core.AlreadyProcessedError
	if !errors.As(err, &ap) {
		t.Fatalf("second ReceiveIncome() error = %v, want AlreadyProcessedError", err)
	}
	if ap.ID != "occ-1" {
		t.Errorf("ID = %s, want occ-1", ap.ID)
	}
	if after := store.Snapshot(); !bytes.Equal(before, after) {
		t.Error("store mutated by a rejected duplicate receipt")
	}

	bm, err := store.GetBudgetMonth(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("GetBudgetMonth() error = %v", err)
	}
	if bm.ReceivedIncomeCents != 150_000 {
		t.Errorf("ReceivedIncomeCents = %d, want 150000 (counted once)", bm.ReceivedIncomeCents)
	}
}

func TestReceiveIncome_Overrides(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedOccurrence(t, store, "u1", "occ-1", 150_000)

	date := time.Date(2026, 8, 10, 8, 0, 0, 0, time.UTC)
	res, err := svc.ReceiveIncome(ctx, "u1", "occ-1", ReceiveIncomeOptions{
		AmountCents: 148_250, // actual deposit differed from the scheduled net
		Date:        date,
	})
	if err != nil {
		t.Fatalf("ReceiveIncome() error = %v", err)
	}
	if res.Transaction.AmountCents != 148_250 {
		t.Errorf("AmountCents = %d, want 148250", res.Transaction.AmountCents)
	}
	if !res.Transaction.Date.Equal(date) {
		t.Errorf("Date = %v, want %v", res.Transaction.Date, date)
	}
}

func TestReceiveIncome_NegativeAmount(t *testing.T) {
	svc, store := newTestService(t, Options{})
	seedOccurrence(t, store, "u1", "occ-1", 150_000)
	_, err := svc.ReceiveIncome(context.Background(), "u1", "occ-1", ReceiveIncomeOptions{AmountCents: -1})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("ReceiveIncome() error = %v, want ErrInvalidAmount", err)
	}
}

func TestReceiveIncome_UnknownOccurrence(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	_, err := svc.ReceiveIncome(context.Background(), "u1", "occ-ghost", ReceiveIncomeOptions{})
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("ReceiveIncome() error = %v, want NotFoundError", err)
	}
}

func TestReceiveIncome_EndOfMonthDeferral(t *testing.T) {
	// August has 31 days; with the default 3-day window, the 28th is the
	// earliest date from which income may be pushed into September.
	tests := []struct {
		name      string
		day       int
		choice    core.Month
		wantMonth core.Month
		wantErr   error
	}{
		{"no choice mid-month", 15, "", "2026-08", nil},
		{"explicit current month", 15, "2026-08", "2026-08", nil},
		{"defer on last day", 31, "2026-09", "2026-09", nil},
		{"defer at window edge", 28, "2026-09", "2026-09", nil},
		{"defer outside window", 27, "2026-09", "", core.ErrInvalidMonthChoice},
		{"defer two months ahead", 31, "2026-10", "", core.ErrInvalidMonthChoice},
		{"defer backwards", 15, "2026-07", "", core.ErrInvalidMonthChoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t, Options{})
			seedOccurrence(t, store, "u1", "occ-1", 100_000)

			res, err := svc.ReceiveIncome(context.Background(), "u1", "occ-1", ReceiveIncomeOptions{
				Date:        time.Date(2026, 8, tt.day, 18, 0, 0, 0, time.UTC),
				BudgetMonth: tt.choice,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReceiveIncome() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReceiveIncome() error = %v", err)
			}
			if res.Transaction.BudgetMonth != tt.wantMonth {
				t.Errorf("BudgetMonth = %s, want %s", res.Transaction.BudgetMonth, tt.wantMonth)
			}
		})
	}
}

func TestReceiveIncome_DeferredRaisesNextMonth(t *testing.T) {
	svc, store := newTestService(t, Options{})
	ctx := context.Background()
	seedMonthlyIncome(t, store, "u1", 400_000)
	seedOccurrence(t, store, "u1", "occ-1", 150_000)

	_, err := svc.ReceiveIncome(ctx, "u1", "occ-1", ReceiveIncomeOptions{
		Date:        time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC),
		BudgetMonth: "2026-09",
	})
	if err != nil {
		t.Fatalf("ReceiveIncome() error = %v", err)
	}

	sep, err := svc.Summary(ctx, "u1", "2026-09")
	if err != nil {
		t.Fatalf("Summary(2026-09) error = %v", err)
	}
	if sep.ReceivedIncomeCents != 150_000 {
		t.Errorf("September ReceivedIncomeCents = %d, want 150000", sep.ReceivedIncomeCents)
	}
	aug, err := svc.Summary(ctx, "u1", "2026-08")
	if err != nil {
		t.Fatalf("Summary(2026-08) error = %v", err)
	}
	if aug.ReceivedIncomeCents != 0 {
		t.Errorf("August ReceivedIncomeCents = %d, want 0", aug.ReceivedIncomeCents)
	}
}

func TestIncomePolicies(t *testing.T) {
	t.Run("additive counts forecast plus received", func(t *testing.T) {
		svc, store := newTestService(t, Options{IncomePolicy: IncomePolicyAdditive})
		ctx := context.Background()
		seedMonthlyIncome(t, store, "u1", 400_000)
		seedCategory(t, store, "u1", "cat-a", "A", false)
		seedOccurrence(t, store, "u1", "occ-1", 150_000)

		if _, err := svc.ReceiveIncome(ctx, "u1", "occ-1", ReceiveIncomeOptions{}); err != nil {
			t.Fatalf("ReceiveIncome() error = %v", err)
		}
		res, err := svc.Assign(ctx, "u1", "2026-08", "cat-a", 100_000, false)
		if err != nil {
			t.Fatalf("Assign() error = %v", err)
		}
		if res.NewRTACents != 450_000 {
			t.Errorf("NewRTACents = %d, want 450000 (400000 expected + 150000 received - 100000)", res.NewRTACents)
		}
	})

	t.Run("realized counts only received", func(t *testing.T) {
		svc, store := newTestService(t, Options{IncomePolicy: IncomePolicyRealized})
		ctx := context.Background()
		seedMonthlyIncome(t, store, "u1", 400_000)
		seedCategory(t, store, "u1", "cat-a", "A", false)
		seedOccurrence(t, store, "u1", "occ-1", 150_000)

		if _, err := svc.ReceiveIncome(ctx, "u1", "occ-1", ReceiveIncomeOptions{}); err != nil {
			t.Fatalf("ReceiveIncome() error = %v", err)
		}
		res, err := svc.Assign(ctx, "u1", "2026-08", "cat-a", 100_000, false)
		if err != nil {
			t.Fatalf("Assign() error = %v", err)
		}
		if res.NewRTACents != 50_000 {
			t.Errorf("NewRTACents = %d, want 50000 (150000 received - 100000)", res.NewRTACents)
		}

		// The forecast alone assigns nothing under the realized policy.
		_, err = svc.Assign(ctx, "u1", "2026-08", "cat-a", 150_001, false)
		var oa *core.OverAssignmentError
		if !errors.As(err, &oa) {
			t.Errorf("Assign() error = %v, want OverAssignmentError", err)
		}
	})
}
