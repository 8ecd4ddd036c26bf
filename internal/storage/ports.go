// Package storage defines the ledger store port and its SQLite
// implementation. The ledger core treats persistence as an opaque
// collaborator: everything it needs is expressed by the Store interface,
// and every mutation group travels as one atomic ChangeSet.
package storage

import (
	"context"

	"budgetd/internal/core"
)

// ChangeSet is the unit of atomic mutation for one user's ledger. A store
// applies the whole set or none of it; a client-initiated abort mid-apply
// must not leave a partially-applied set.
type ChangeSet struct {
	UserID string

	// BudgetMonth, when non-nil, is upserted. ExpectedMonthVersion guards
	// the write: 0 means the month is being created; any other value must
	// match the stored version or Apply fails with ConflictError.
	BudgetMonth          *core.BudgetMonth
	ExpectedMonthVersion int64

	Items             []core.BudgetItem       // upserts keyed by (month, category)
	Transactions      []core.Transaction      // inserts
	IncomeOccurrences []core.IncomeOccurrence // full-row updates
	BillOccurrences   []core.BillOccurrence   // upserts
	BillPayments      []core.BillPayment      // inserts
	Categories        []core.Category         // upserts (bill link, auto-create)
	Bills             []core.Bill             // upserts (category link)
}

// Empty reports whether the set mutates nothing.
func (cs ChangeSet) Empty() bool {
	return cs.BudgetMonth == nil &&
		len(cs.Items) == 0 &&
		len(cs.Transactions) == 0 &&
		len(cs.IncomeOccurrences) == 0 &&
		len(cs.BillOccurrences) == 0 &&
		len(cs.BillPayments) == 0 &&
		len(cs.Categories) == 0 &&
		len(cs.Bills) == 0
}

// Store is the ledger persistence port.
//
// Absent entities are reported with *core.NotFoundError. Transient storage
// failures are reported with *core.PersistenceError; the ledger retries
// those once before surfacing them.
type Store interface {
	// Apply atomically persists a change set for one user.
	Apply(ctx context.Context, cs ChangeSet) error

	GetBudgetMonth(ctx context.Context, userID string, month core.Month) (core.BudgetMonth, error)
	ListBudgetItems(ctx context.Context, userID string, month core.Month) ([]core.BudgetItem, error)
	GetBudgetItem(ctx context.Context, userID string, month core.Month, categoryID string) (core.BudgetItem, error)

	GetCategory(ctx context.Context, userID, categoryID string) (core.Category, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) error
	ListCategoryGroups(ctx context.Context, userID string) ([]core.CategoryGroup, error)
	CreateCategoryGroup(ctx context.Context, g core.CategoryGroup) error

	ListActiveIncomeSources(ctx context.Context, userID string) ([]core.IncomeSource, error)
	CreateIncomeSource(ctx context.Context, s core.IncomeSource) error
	GetIncomeOccurrence(ctx context.Context, userID, occurrenceID string) (core.IncomeOccurrence, error)
	ListIncomeOccurrences(ctx context.Context, userID string) ([]core.IncomeOccurrence, error)
	CreateIncomeOccurrence(ctx context.Context, o core.IncomeOccurrence) error

	GetBill(ctx context.Context, userID, billID string) (core.Bill, error)
	ListBills(ctx context.Context, userID string) ([]core.Bill, error)
	CreateBill(ctx context.Context, b core.Bill) error
	ListBillOccurrences(ctx context.Context, userID, billID string) ([]core.BillOccurrence, error)

	ListTransactions(ctx context.Context, userID string, month core.Month) ([]core.Transaction, error)

	// ListUserIDs enumerates users with any ledger definitions. Used by
	// the occurrence worker.
	ListUserIDs(ctx context.Context) ([]string, error)
}
