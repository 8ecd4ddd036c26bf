package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"budgetd/internal/core"
	"budgetd/internal/storage"
)

// PayBillOptions carries overrides for a bill payment. Zero values default
// from the bill definition.
type PayBillOptions struct {
	AmountCents int64
	Date        time.Time
	AccountID   string
}

// PayBillResult is the atomically-written pair for a settled bill.
type PayBillResult struct {
	Transaction core.Transaction
	BillPayment core.BillPayment
}

// PayBill settles a bill: one expense transaction and one BillPayment
// record, written atomically. The transaction's budget month is the
// calendar month of the payment date; unlike income receipt there is no
// end-of-month deferral for bills. The earliest unpaid occurrence of the
// bill, if any, is marked paid in the same write.
func (s *Service) PayBill(ctx context.Context, userID, billID string, opts PayBillOptions) (PayBillResult, error) {
	if userID == "" {
		return PayBillResult{}, core.ErrEmptyUserID
	}
	if opts.AmountCents < 0 {
		return PayBillResult{}, core.ErrInvalidAmount
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	bill, err := s.store.GetBill(opCtx, userID, billID)
	if err != nil {
		return PayBillResult{}, err
	}

	amount := bill.AmountCents
	if opts.AmountCents != 0 {
		amount = opts.AmountCents
	}
	date := opts.Date
	if date.IsZero() {
		date = s.opts.Clock()
	}
	account := bill.AccountID
	if opts.AccountID != "" {
		account = opts.AccountID
	}
	month := core.MonthOf(date)

	bm, expectedVersion, err := s.loadOrInitMonth(opCtx, userID, month)
	if err != nil {
		return PayBillResult{}, err
	}

	tx := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        date,
		AmountCents: -amount,
		Type:        core.TxExpense,
		CategoryID:  bill.CategoryID,
		AccountID:   account,
		BudgetMonth: month,
		BillID:      bill.ID,
	}
	payment := core.BillPayment{
		ID:          uuid.NewString(),
		UserID:      userID,
		BillID:      bill.ID,
		TxID:        tx.ID,
		PaidAt:      date,
		AmountCents: amount,
		AccountID:   account,
	}

	cs := storage.ChangeSet{
		UserID:               userID,
		BudgetMonth:          &bm,
		ExpectedMonthVersion: expectedVersion,
		Transactions:         []core.Transaction{tx},
		BillPayments:         []core.BillPayment{payment},
	}

	// Settle the earliest unpaid occurrence, if the bill has one open.
	occs, err := s.store.ListBillOccurrences(opCtx, userID, bill.ID)
	if err != nil {
		return PayBillResult{}, err
	}
	for _, o := range occs {
		if o.Status == core.BillUpcoming || o.Status == core.BillOverdue {
			o.Status = core.BillPaid
			o.PaidTxID = tx.ID
			cs.BillOccurrences = []core.BillOccurrence{o}
			break
		}
	}

	// A linked bill feeds the spent side of the category's budget item.
	if bill.CategoryID != "" {
		item, err := s.spentItem(opCtx, userID, month, bill.CategoryID, amount)
		if err != nil {
			return PayBillResult{}, err
		}
		cs.Items = []core.BudgetItem{item}
	}

	if err := s.apply(ctx, cs); err != nil {
		return PayBillResult{}, err
	}
	s.invalidateSummaries(userID, month)
	s.publishTransaction(ctx, tx)

	slog.InfoContext(ctx, "Bill paid",
		"user_id", userID,
		"bill_id", bill.ID,
		"amount_cents", amount,
		"budget_month", month,
		"tx_id", tx.ID)

	return PayBillResult{Transaction: tx, BillPayment: payment}, nil
}

// spentItem returns the (month, category) budget item with amount added to
// its spent side, materializing the item on first linked spend.
func (s *Service) spentItem(ctx context.Context, userID string, month core.Month, categoryID string, amount int64) (core.BudgetItem, error) {
	item, err := s.store.GetBudgetItem(ctx, userID, month, categoryID)
	if err != nil {
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			return core.BudgetItem{}, err
		}
		carry, err := s.carriedInto(ctx, userID, month)
		if err != nil {
			return core.BudgetItem{}, err
		}
		item = core.BudgetItem{
			ID:                    uuid.NewString(),
			UserID:                userID,
			Month:                 month,
			CategoryID:            categoryID,
			LeftoverFromPrevCents: carry.Leftovers[categoryID],
		}
	}
	item.SpentCents += amount
	return item, nil
}

// LinkBillResult reports a bill-category association.
type LinkBillResult struct {
	Bill                        core.Bill
	Category                    core.Category
	SuggestedMonthlyAmountCents int64
}

// LinkBillToCategory associates a bill with a budget category. With an
// empty categoryID and autoCreate set, a category named after the bill is
// created. The suggested monthly allocation uses the same frequency
// conversion as expected income and is written onto the category's
// monthly budget as advisory, never enforced.
func (s *Service) LinkBillToCategory(ctx context.Context, userID, billID, categoryID string, autoCreate bool) (LinkBillResult, error) {
	if userID == "" {
		return LinkBillResult{}, core.ErrEmptyUserID
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	bill, err := s.store.GetBill(opCtx, userID, billID)
	if err != nil {
		return LinkBillResult{}, err
	}

	var cat core.Category
	if categoryID == "" {
		if !autoCreate {
			return LinkBillResult{}, &core.NotFoundError{Kind: "category", ID: ""}
		}
		cats, err := s.store.ListCategories(opCtx, userID)
		if err != nil {
			return LinkBillResult{}, err
		}
		cat = core.Category{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      strings.TrimSpace(bill.Name),
			SortOrder: len(cats),
		}
		if err := cat.Validate(); err != nil {
			return LinkBillResult{}, err
		}
	} else {
		cat, err = s.store.GetCategory(opCtx, userID, categoryID)
		if err != nil {
			return LinkBillResult{}, err
		}
	}

	suggested := s.suggestedMonthly(bill)
	cat.LinkedBillID = bill.ID
	cat.MonthlyBudgetCents = suggested
	bill.CategoryID = cat.ID

	err = s.apply(ctx, storage.ChangeSet{
		UserID:     userID,
		Categories: []core.Category{cat},
		Bills:      []core.Bill{bill},
	})
	if err != nil {
		return LinkBillResult{}, err
	}

	slog.InfoContext(ctx, "Bill linked to category",
		"user_id", userID,
		"bill_id", bill.ID,
		"category_id", cat.ID,
		"suggested_monthly_cents", suggested)

	return LinkBillResult{Bill: bill, Category: cat, SuggestedMonthlyAmountCents: suggested}, nil
}

// UnlinkBill removes the bill-category association. Idempotent: absence of
// the link is not an error.
func (s *Service) UnlinkBill(ctx context.Context, userID, billID, categoryID string) error {
	if userID == "" {
		return core.ErrEmptyUserID
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	bill, err := s.store.GetBill(opCtx, userID, billID)
	if err != nil {
		return err
	}

	cs := storage.ChangeSet{UserID: userID}
	if bill.CategoryID == categoryID && categoryID != "" {
		bill.CategoryID = ""
		cs.Bills = []core.Bill{bill}
	}
	cat, err := s.store.GetCategory(opCtx, userID, categoryID)
	if err != nil {
		// A missing category means the link is already gone; anything
		// else must surface before a one-sided write is reported as done.
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
	} else if cat.LinkedBillID == billID {
		cat.LinkedBillID = ""
		cs.Categories = []core.Category{cat}
	}
	if cs.Empty() {
		return nil
	}
	return s.apply(ctx, cs)
}

// suggestedMonthly converts a bill's amount into a monthly-equivalent
// allocation, honoring an everyN cadence multiplier.
func (s *Service) suggestedMonthly(bill core.Bill) int64 {
	eq := s.opts.Convert(bill.Frequency, bill.AmountCents)
	n := int64(bill.EveryN)
	if n > 1 {
		// Half-up integer division keeps cents exact.
		eq = (eq + n/2) / n
	}
	return eq
}
