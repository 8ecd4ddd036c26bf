package ledger

import (
	"context"

	"github.com/google/uuid"

	"budgetd/internal/core"
	"budgetd/internal/storage"
)

// Registry operations: category/group definitions, income sources and
// bills. These are thin, validated creates; the allocation engine consumes
// the definitions.

// CreateCategory validates and stores a new category.
func (s *Service) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.UserID == "" {
		return core.Category{}, core.ErrEmptyUserID
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = uuid.NewString()

	opCtx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.CreateCategory(opCtx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// CreateCategoryGroup validates and stores a new group.
func (s *Service) CreateCategoryGroup(ctx context.Context, g core.CategoryGroup) (core.CategoryGroup, error) {
	if g.UserID == "" {
		return core.CategoryGroup{}, core.ErrEmptyUserID
	}
	if err := g.Validate(); err != nil {
		return core.CategoryGroup{}, err
	}
	g.ID = uuid.NewString()

	opCtx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.CreateCategoryGroup(opCtx, g); err != nil {
		return core.CategoryGroup{}, err
	}
	return g, nil
}

// ListCategories returns the user's categories in sort order.
func (s *Service) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	opCtx, cancel := s.bound(ctx)
	defer cancel()
	return s.store.ListCategories(opCtx, userID)
}

// ListCategoryGroups returns the user's groups in sort order.
func (s *Service) ListCategoryGroups(ctx context.Context, userID string) ([]core.CategoryGroup, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	opCtx, cancel := s.bound(ctx)
	defer cancel()
	return s.store.ListCategoryGroups(opCtx, userID)
}

// ReorderCategories rewrites sort order to match orderedIDs. Unknown ids
// are rejected; categories not listed keep their relative order after the
// listed ones.
func (s *Service) ReorderCategories(ctx context.Context, userID string, orderedIDs []string) error {
	if userID == "" {
		return core.ErrEmptyUserID
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	opCtx, cancel := s.bound(ctx)
	defer cancel()

	cats, err := s.store.ListCategories(opCtx, userID)
	if err != nil {
		return err
	}
	byID := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	var updated []core.Category
	for i, id := range orderedIDs {
		c, ok := byID[id]
		if !ok {
			return &core.NotFoundError{Kind: "category", ID: id}
		}
		c.SortOrder = i
		updated = append(updated, c)
		delete(byID, id)
	}
	next := len(orderedIDs)
	for _, c := range cats {
		if _, remains := byID[c.ID]; remains {
			c.SortOrder = next
			next++
			updated = append(updated, c)
		}
	}

	return s.apply(ctx, storage.ChangeSet{UserID: userID, Categories: updated})
}

// CreateIncomeSource validates and stores a recurring income definition.
func (s *Service) CreateIncomeSource(ctx context.Context, src core.IncomeSource) (core.IncomeSource, error) {
	if src.UserID == "" {
		return core.IncomeSource{}, core.ErrEmptyUserID
	}
	if err := src.Validate(); err != nil {
		return core.IncomeSource{}, err
	}
	src.ID = uuid.NewString()

	opCtx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.CreateIncomeSource(opCtx, src); err != nil {
		return core.IncomeSource{}, err
	}
	return src, nil
}

// ListIncomeSources returns the user's active income sources.
func (s *Service) ListIncomeSources(ctx context.Context, userID string) ([]core.IncomeSource, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	opCtx, cancel := s.bound(ctx)
	defer cancel()
	return s.store.ListActiveIncomeSources(opCtx, userID)
}

// CreateBill validates and stores a recurring obligation.
func (s *Service) CreateBill(ctx context.Context, b core.Bill) (core.Bill, error) {
	if b.UserID == "" {
		return core.Bill{}, core.ErrEmptyUserID
	}
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	b.ID = uuid.NewString()
	if b.EveryN == 0 {
		b.EveryN = 1
	}

	opCtx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.store.CreateBill(opCtx, b); err != nil {
		return core.Bill{}, err
	}
	return b, nil
}

// ListBills returns the user's bills.
func (s *Service) ListBills(ctx context.Context, userID string) ([]core.Bill, error) {
	if userID == "" {
		return nil, core.ErrEmptyUserID
	}
	opCtx, cancel := s.bound(ctx)
	defer cancel()
	return s.store.ListBills(opCtx, userID)
}
