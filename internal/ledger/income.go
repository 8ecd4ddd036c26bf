package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"budgetd/internal/core"
	"budgetd/internal/storage"
)

// ReceiveIncomeOptions carries the caller's overrides. Zero values mean
// "use the occurrence's own data".
type ReceiveIncomeOptions struct {
	AmountCents int64     // 0 = the occurrence's net amount
	Date        time.Time // zero = now
	// BudgetMonth lets the caller attribute income received within the
	// end-of-month window to the next calendar month. Empty = the calendar
	// month of the receive date.
	BudgetMonth core.Month
}

// ReceiveIncomeResult is the outcome of a received occurrence.
type ReceiveIncomeResult struct {
	Transaction      core.Transaction
	BudgetMonth      core.BudgetMonth
	RTAIncreaseCents int64
}

// ReceiveIncome marks a scheduled income occurrence as received.
//
// The occurrence transitions SCHEDULED -> RECEIVED exactly once; a second
// call fails with AlreadyProcessedError and changes nothing. The income
// transaction, the occurrence transition and the budget-month update are
// one atomic unit. Received income never touches any category assignment:
// it raises the month's Ready-to-Assign by exactly the received amount.
func (s *Service) ReceiveIncome(ctx context.Context, userID, occurrenceID string, opts ReceiveIncomeOptions) (ReceiveIncomeResult, error) {
	if userID == "" {
		return ReceiveIncomeResult{}, core.ErrEmptyUserID
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	occ, err := s.store.GetIncomeOccurrence(opCtx, userID, occurrenceID)
	if err != nil {
		return ReceiveIncomeResult{}, err
	}
	if occ.Status == core.OccurrenceReceived {
		return ReceiveIncomeResult{}, &core.AlreadyProcessedError{Kind: "occurrence", ID: occurrenceID}
	}

	amount := occ.NetCents
	if opts.AmountCents != 0 {
		if opts.AmountCents < 0 {
			return ReceiveIncomeResult{}, core.ErrInvalidAmount
		}
		amount = opts.AmountCents
	}
	date := opts.Date
	if date.IsZero() {
		date = s.opts.Clock()
	}

	month, err := s.resolveIncomeMonth(date, opts.BudgetMonth)
	if err != nil {
		return ReceiveIncomeResult{}, err
	}

	bm, expectedVersion, err := s.loadOrInitMonth(opCtx, userID, month)
	if err != nil {
		return ReceiveIncomeResult{}, err
	}
	bm.ReceivedIncomeCents += amount

	tx := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        date,
		AmountCents: amount,
		Type:        core.TxIncome,
		BudgetMonth: month,
		SourceID:    occ.SourceID,
	}

	occ.Status = core.OccurrenceReceived
	occ.PostedAt = s.opts.Clock()
	occ.TxID = tx.ID
	occ.BudgetMonth = month

	cs := storage.ChangeSet{
		UserID:               userID,
		BudgetMonth:          &bm,
		ExpectedMonthVersion: expectedVersion,
		Transactions:         []core.Transaction{tx},
		IncomeOccurrences:    []core.IncomeOccurrence{occ},
	}
	if err := s.apply(ctx, cs); err != nil {
		return ReceiveIncomeResult{}, err
	}
	s.invalidateSummaries(userID, month)
	s.publishTransaction(ctx, tx)

	slog.InfoContext(ctx, "Income received",
		"user_id", userID,
		"occurrence_id", occurrenceID,
		"amount_cents", amount,
		"budget_month", month)

	bm.Version = expectedVersion + 1
	return ReceiveIncomeResult{
		Transaction:      tx,
		BudgetMonth:      bm,
		RTAIncreaseCents: amount,
	}, nil
}

// resolveIncomeMonth applies the end-of-month threshold rule: income may be
// attributed to the next calendar month only when the receive date falls
// within the threshold window before month-end, and only to exactly the
// next month. Absent a choice, the calendar month of the date wins.
func (s *Service) resolveIncomeMonth(date time.Time, choice core.Month) (core.Month, error) {
	current := core.MonthOf(date)
	if choice == "" || choice == current {
		return current, nil
	}
	if choice != current.Next() {
		return "", core.ErrInvalidMonthChoice
	}
	if current.DaysUntilEnd(date) > s.opts.EOMThresholdDays {
		return "", core.ErrInvalidMonthChoice
	}
	return choice, nil
}
