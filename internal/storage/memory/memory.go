// Package memory provides the in-memory ledger store. It is the default
// backend for local runs and the backend the service tests run against.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"budgetd/internal/core"
	"budgetd/internal/storage"
)

// Store keeps one user's ledger entities in maps guarded by a single mutex.
// Apply is atomic by construction: the lock is held for the whole set.
type Store struct {
	mu sync.Mutex

	months      map[string]core.BudgetMonth      // key userID|month
	items       map[string]core.BudgetItem       // key userID|month|categoryID
	categories  map[string]core.Category         // key userID|id
	groups      map[string]core.CategoryGroup    // key userID|id
	sources     map[string]core.IncomeSource     // key userID|id
	occurrences map[string]core.IncomeOccurrence // key userID|id
	bills       map[string]core.Bill             // key userID|id
	billOccs    map[string]core.BillOccurrence   // key userID|id
	payments    map[string]core.BillPayment      // key userID|id
	txs         map[string]core.Transaction      // key userID|id
}

func New() *Store {
	return &Store{
		months:      make(map[string]core.BudgetMonth),
		items:       make(map[string]core.BudgetItem),
		categories:  make(map[string]core.Category),
		groups:      make(map[string]core.CategoryGroup),
		sources:     make(map[string]core.IncomeSource),
		occurrences: make(map[string]core.IncomeOccurrence),
		bills:       make(map[string]core.Bill),
		billOccs:    make(map[string]core.BillOccurrence),
		payments:    make(map[string]core.BillPayment),
		txs:         make(map[string]core.Transaction),
	}
}

func key(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "|" + p
	}
	return out
}

// Apply implements storage.Store.
func (s *Store) Apply(ctx context.Context, cs storage.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return &core.PersistenceError{Op: "apply", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cs.BudgetMonth != nil {
		k := key(cs.UserID, string(cs.BudgetMonth.Month))
		existing, ok := s.months[k]
		switch {
		case !ok && cs.ExpectedMonthVersion != 0:
			return &core.ConflictError{Kind: "budget_month", ID: cs.BudgetMonth.ID,
				ExpectedVersion: cs.ExpectedMonthVersion, ActualVersion: 0}
		case ok && existing.Version != cs.ExpectedMonthVersion:
			return &core.ConflictError{Kind: "budget_month", ID: existing.ID,
				ExpectedVersion: cs.ExpectedMonthVersion, ActualVersion: existing.Version}
		}
		bm := *cs.BudgetMonth
		bm.Version = cs.ExpectedMonthVersion + 1
		s.months[k] = bm
	}
	for _, it := range cs.Items {
		s.items[key(it.UserID, string(it.Month), it.CategoryID)] = it
	}
	for _, tx := range cs.Transactions {
		s.txs[key(tx.UserID, tx.ID)] = tx
	}
	for _, o := range cs.IncomeOccurrences {
		s.occurrences[key(o.UserID, o.ID)] = o
	}
	for _, o := range cs.BillOccurrences {
		s.billOccs[key(o.UserID, o.ID)] = o
	}
	for _, p := range cs.BillPayments {
		s.payments[key(p.UserID, p.ID)] = p
	}
	for _, c := range cs.Categories {
		s.categories[key(c.UserID, c.ID)] = c
	}
	for _, b := range cs.Bills {
		s.bills[key(b.UserID, b.ID)] = b
	}
	return nil
}

func (s *Store) GetBudgetMonth(_ context.Context, userID string, month core.Month) (core.BudgetMonth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bm, ok := s.months[key(userID, string(month))]
	if !ok {
		return core.BudgetMonth{}, &core.NotFoundError{Kind: "budget_month", ID: string(month)}
	}
	return bm, nil
}

func (s *Store) ListBudgetItems(_ context.Context, userID string, month core.Month) ([]core.BudgetItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BudgetItem
	for _, it := range s.items {
		if it.UserID == userID && it.Month == month {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (s *Store) GetBudgetItem(_ context.Context, userID string, month core.Month, categoryID string) (core.BudgetItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key(userID, string(month), categoryID)]
	if !ok {
		return core.BudgetItem{}, &core.NotFoundError{Kind: "budget_item", ID: categoryID}
	}
	return it, nil
}

func (s *Store) GetCategory(_ context.Context, userID, categoryID string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[key(userID, categoryID)]
	if !ok {
		return core.Category{}, &core.NotFoundError{Kind: "category", ID: categoryID}
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[key(c.UserID, c.ID)] = c
	return nil
}

func (s *Store) ListCategoryGroups(_ context.Context, userID string) ([]core.CategoryGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CategoryGroup
	for _, g := range s.groups {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (s *Store) CreateCategoryGroup(_ context.Context, g core.CategoryGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[key(g.UserID, g.ID)] = g
	return nil
}

func (s *Store) ListActiveIncomeSources(_ context.Context, userID string) ([]core.IncomeSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.IncomeSource
	for _, src := range s.sources {
		if src.UserID == userID && src.Active {
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateIncomeSource(_ context.Context, src core.IncomeSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[key(src.UserID, src.ID)] = src
	return nil
}

func (s *Store) GetIncomeOccurrence(_ context.Context, userID, occurrenceID string) (core.IncomeOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occurrences[key(userID, occurrenceID)]
	if !ok {
		return core.IncomeOccurrence{}, &core.NotFoundError{Kind: "occurrence", ID: occurrenceID}
	}
	return o, nil
}

func (s *Store) ListIncomeOccurrences(_ context.Context, userID string) ([]core.IncomeOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.IncomeOccurrence
	for _, o := range s.occurrences {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *Store) CreateIncomeOccurrence(_ context.Context, o core.IncomeOccurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.occurrences[key(o.UserID, o.ID)] = o
	return nil
}

func (s *Store) GetBill(_ context.Context, userID, billID string) (core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[key(userID, billID)]
	if !ok {
		return core.Bill{}, &core.NotFoundError{Kind: "bill", ID: billID}
	}
	return b, nil
}

func (s *Store) ListBills(_ context.Context, userID string) ([]core.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Bill
	for _, b := range s.bills {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateBill(_ context.Context, b core.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills[key(b.UserID, b.ID)] = b
	return nil
}

func (s *Store) ListBillOccurrences(_ context.Context, userID, billID string) ([]core.BillOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BillOccurrence
	for _, o := range s.billOccs {
		if o.UserID == userID && (billID == "" || o.BillID == billID) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, month core.Month) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.UserID == userID && (month == "" || tx.BudgetMonth == month) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for _, b := range s.bills {
		seen[b.UserID] = struct{}{}
	}
	for _, src := range s.sources {
		seen[src.UserID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Snapshot serializes the whole store. Tests compare snapshots around
// rejected mutations to prove no partial state leaked.
func (s *Store) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, _ := json.Marshal(struct {
		Months      map[string]core.BudgetMonth
		Items       map[string]core.BudgetItem
		Categories  map[string]core.Category
		Groups      map[string]core.CategoryGroup
		Sources     map[string]core.IncomeSource
		Occurrences map[string]core.IncomeOccurrence
		Bills       map[string]core.Bill
		BillOccs    map[string]core.BillOccurrence
		Payments    map[string]core.BillPayment
		Txs         map[string]core.Transaction
	}{s.months, s.items, s.categories, s.groups, s.sources, s.occurrences, s.bills, s.billOccs, s.payments, s.txs})
	return blob
}

var _ storage.Store = (*Store)(nil)
