package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budgetd/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a modernc.org/sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func textToTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// perr wraps driver-level failures as retryable persistence errors.
// Domain errors (not found, conflict) pass through unchanged.
func perr(op string, err error) error {
	var nf *core.NotFoundError
	var cf *core.ConflictError
	if errors.As(err, &nf) || errors.As(err, &cf) {
		return err
	}
	return &core.PersistenceError{Op: op, Err: err}
}

// Apply implements Store. The whole change set runs inside one SQL
// transaction; the budget-month version check turns lost updates into
// ConflictError before anything is written.
func (s *SQLiteStore) Apply(ctx context.Context, cs ChangeSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return perr("apply.begin", err)
	}
	defer tx.Rollback()

	if cs.BudgetMonth != nil {
		if err := s.applyBudgetMonth(ctx, tx, cs); err != nil {
			return err
		}
	}
	for _, it := range cs.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO budget_items (id, user_id, month, category_id, assigned_cents, spent_cents, leftover_from_prev_cents)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, month, category_id) DO UPDATE SET
				assigned_cents = excluded.assigned_cents,
				spent_cents = excluded.spent_cents,
				leftover_from_prev_cents = excluded.leftover_from_prev_cents`,
			it.ID, it.UserID, string(it.Month), it.CategoryID,
			it.AssignedCents, it.SpentCents, it.LeftoverFromPrevCents)
		if err != nil {
			return perr("apply.budget_item", err)
		}
	}
	for _, t := range cs.Transactions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, user_id, tx_date, amount_cents, tx_type, category_id, account_id, budget_month, bill_id, source_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.UserID, timeToText(t.Date), t.AmountCents, string(t.Type),
			t.CategoryID, t.AccountID, string(t.BudgetMonth), t.BillID, t.SourceID)
		if err != nil {
			return perr("apply.transaction", err)
		}
	}
	for _, o := range cs.IncomeOccurrences {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO income_occurrences (id, user_id, source_id, scheduled_at, net_cents, status, posted_at, tx_id, budget_month)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				posted_at = excluded.posted_at,
				tx_id = excluded.tx_id,
				budget_month = excluded.budget_month`,
			o.ID, o.UserID, o.SourceID, timeToText(o.ScheduledAt), o.NetCents,
			string(o.Status), timeToText(o.PostedAt), o.TxID, string(o.BudgetMonth))
		if err != nil {
			return perr("apply.income_occurrence", err)
		}
	}
	for _, o := range cs.BillOccurrences {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bill_occurrences (id, user_id, bill_id, due_date, status, paid_tx_id)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				paid_tx_id = excluded.paid_tx_id`,
			o.ID, o.UserID, o.BillID, timeToText(o.DueDate), string(o.Status), o.PaidTxID)
		if err != nil {
			return perr("apply.bill_occurrence", err)
		}
	}
	for _, p := range cs.BillPayments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bill_payments (id, user_id, bill_id, tx_id, paid_at, amount_cents, account_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.UserID, p.BillID, p.TxID, timeToText(p.PaidAt), p.AmountCents, p.AccountID)
		if err != nil {
			return perr("apply.bill_payment", err)
		}
	}
	for _, c := range cs.Categories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, user_id, name, group_id, sort_order, rollover, priority, monthly_budget_cents, linked_bill_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				group_id = excluded.group_id,
				sort_order = excluded.sort_order,
				rollover = excluded.rollover,
				priority = excluded.priority,
				monthly_budget_cents = excluded.monthly_budget_cents,
				linked_bill_id = excluded.linked_bill_id`,
			c.ID, c.UserID, c.Name, c.GroupID, c.SortOrder, boolToInt(c.Rollover),
			c.Priority, c.MonthlyBudgetCents, c.LinkedBillID)
		if err != nil {
			return perr("apply.category", err)
		}
	}
	for _, b := range cs.Bills {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bills (id, user_id, name, category_id, amount_cents, frequency, day_of_month, weekday, every_n, autopay_enabled, account_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				category_id = excluded.category_id,
				amount_cents = excluded.amount_cents,
				frequency = excluded.frequency,
				day_of_month = excluded.day_of_month,
				weekday = excluded.weekday,
				every_n = excluded.every_n,
				autopay_enabled = excluded.autopay_enabled,
				account_id = excluded.account_id`,
			b.ID, b.UserID, b.Name, b.CategoryID, b.AmountCents, string(b.Frequency),
			b.DayOfMonth, int(b.Weekday), b.EveryN, boolToInt(b.AutopayEnabled), b.AccountID)
		if err != nil {
			return perr("apply.bill", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return perr("apply.commit", err)
	}

	slog.DebugContext(ctx, "Change set applied",
		"user_id", cs.UserID,
		"items", len(cs.Items),
		"transactions", len(cs.Transactions))
	return nil
}

func (s *SQLiteStore) applyBudgetMonth(ctx context.Context, tx *sql.Tx, cs ChangeSet) error {
	bm := cs.BudgetMonth
	var current int64
	err := tx.QueryRowContext(ctx,
		`SELECT version FROM budget_months WHERE user_id = ? AND month = ?`,
		bm.UserID, string(bm.Month)).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if cs.ExpectedMonthVersion != 0 {
			return &core.ConflictError{Kind: "budget_month", ID: bm.ID,
				ExpectedVersion: cs.ExpectedMonthVersion, ActualVersion: 0}
		}
	case err != nil:
		return perr("apply.budget_month.version", err)
	default:
		if current != cs.ExpectedMonthVersion {
			return &core.ConflictError{Kind: "budget_month", ID: bm.ID,
				ExpectedVersion: cs.ExpectedMonthVersion, ActualVersion: current}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_months (id, user_id, month, expected_income_cents, received_income_cents, allow_over_assign, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, month) DO UPDATE SET
			expected_income_cents = excluded.expected_income_cents,
			received_income_cents = excluded.received_income_cents,
			allow_over_assign = excluded.allow_over_assign,
			version = excluded.version`,
		bm.ID, bm.UserID, string(bm.Month), bm.ExpectedIncomeCents,
		bm.ReceivedIncomeCents, boolToInt(bm.AllowOverAssign), cs.ExpectedMonthVersion+1)
	if err != nil {
		return perr("apply.budget_month", err)
	}
	return nil
}

func (s *SQLiteStore) GetBudgetMonth(ctx context.Context, userID string, month core.Month) (core.BudgetMonth, error) {
	var bm core.BudgetMonth
	var m string
	var allow int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, month, expected_income_cents, received_income_cents, allow_over_assign, version
		FROM budget_months WHERE user_id = ? AND month = ?`,
		userID, string(month)).Scan(&bm.ID, &bm.UserID, &m,
		&bm.ExpectedIncomeCents, &bm.ReceivedIncomeCents, &allow, &bm.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetMonth{}, &core.NotFoundError{Kind: "budget_month", ID: string(month)}
	}
	if err != nil {
		return core.BudgetMonth{}, perr("get_budget_month", err)
	}
	bm.Month = core.Month(m)
	bm.AllowOverAssign = allow != 0
	return bm, nil
}

func (s *SQLiteStore) ListBudgetItems(ctx context.Context, userID string, month core.Month) ([]core.BudgetItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, month, category_id, assigned_cents, spent_cents, leftover_from_prev_cents
		FROM budget_items WHERE user_id = ? AND month = ? ORDER BY category_id`,
		userID, string(month))
	if err != nil {
		return nil, perr("list_budget_items", err)
	}
	defer rows.Close()

	var out []core.BudgetItem
	for rows.Next() {
		var it core.BudgetItem
		var m string
		if err := rows.Scan(&it.ID, &it.UserID, &m, &it.CategoryID,
			&it.AssignedCents, &it.SpentCents, &it.LeftoverFromPrevCents); err != nil {
			return nil, perr("list_budget_items.scan", err)
		}
		it.Month = core.Month(m)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, perr("list_budget_items", err)
	}
	return out, nil
}

func (s *SQLiteStore) GetBudgetItem(ctx context.Context, userID string, month core.Month, categoryID string) (core.BudgetItem, error) {
	var it core.BudgetItem
	var m string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, month, category_id, assigned_cents, spent_cents, leftover_from_prev_cents
		FROM budget_items WHERE user_id = ? AND month = ? AND category_id = ?`,
		userID, string(month), categoryID).Scan(&it.ID, &it.UserID, &m,
		&it.CategoryID, &it.AssignedCents, &it.SpentCents, &it.LeftoverFromPrevCents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetItem{}, &core.NotFoundError{Kind: "budget_item", ID: categoryID}
	}
	if err != nil {
		return core.BudgetItem{}, perr("get_budget_item", err)
	}
	it.Month = core.Month(m)
	return it, nil
}

func (s *SQLiteStore) GetCategory(ctx context.Context, userID, categoryID string) (core.Category, error) {
	var c core.Category
	var rollover int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, group_id, sort_order, rollover, priority, monthly_budget_cents, linked_bill_id
		FROM categories WHERE user_id = ? AND id = ?`,
		userID, categoryID).Scan(&c.ID, &c.UserID, &c.Name, &c.GroupID,
		&c.SortOrder, &rollover, &c.Priority, &c.MonthlyBudgetCents, &c.LinkedBillID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, &core.NotFoundError{Kind: "category", ID: categoryID}
	}
	if err != nil {
		return core.Category{}, perr("get_category", err)
	}
	c.Rollover = rollover != 0
	return c, nil
}

func (s *SQLiteStore) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, group_id, sort_order, rollover, priority, monthly_budget_cents, linked_bill_id
		FROM categories WHERE user_id = ? ORDER BY sort_order, name`, userID)
	if err != nil {
		return nil, perr("list_categories", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var rollover int
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.GroupID, &c.SortOrder,
			&rollover, &c.Priority, &c.MonthlyBudgetCents, &c.LinkedBillID); err != nil {
			return nil, perr("list_categories.scan", err)
		}
		c.Rollover = rollover != 0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, perr("list_categories", err)
	}
	return out, nil
}

func (s *SQLiteStore) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, group_id, sort_order, rollover, priority, monthly_budget_cents, linked_bill_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.GroupID, c.SortOrder, boolToInt(c.Rollover),
		c.Priority, c.MonthlyBudgetCents, c.LinkedBillID)
	if err != nil {
		return perr("create_category", err)
	}
	return nil
}

func (s *SQLiteStore) ListCategoryGroups(ctx context.Context, userID string) ([]core.CategoryGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, sort_order FROM category_groups
		WHERE user_id = ? ORDER BY sort_order, name`, userID)
	if err != nil {
		return nil, perr("list_category_groups", err)
	}
	defer rows.Close()

	var out []core.CategoryGroup
	for rows.Next() {
		var g core.CategoryGroup
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &g.SortOrder); err != nil {
			return nil, perr("list_category_groups.scan", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, perr("list_category_groups", err)
	}
	return out, nil
}

func (s *SQLiteStore) CreateCategoryGroup(ctx context.Context, g core.CategoryGroup) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO category_groups (id, user_id, name, sort_order) VALUES (?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.SortOrder)
	if err != nil {
		return perr("create_category_group", err)
	}
	return nil
}

func (s *SQLiteStore) ListActiveIncomeSources(ctx context.Context, userID string) ([]core.IncomeSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, frequency, amount_cents, active
		FROM income_sources WHERE user_id = ? AND active = 1 ORDER BY id`, userID)
	if err != nil {
		return nil, perr("list_active_income_sources", err)
	}
	defer rows.Close()

	var out []core.IncomeSource
	for rows.Next() {
		var src core.IncomeSource
		var freq string
		var active int
		if err := rows.Scan(&src.ID, &src.UserID, &src.Name, &freq, &src.AmountCents, &active); err != nil {
			return nil, perr("list_active_income_sources.scan", err)
		}
		src.Frequency = core.Frequency(freq)
		src.Active = active != 0
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, perr("list_active_income_sources", err)
	}
	return out, nil
}

func (s *SQLiteStore) CreateIncomeSource(ctx context.Context, src core.IncomeSource) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO income_sources (id, user_id, name, frequency, amount_cents, active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		src.ID, src.UserID, src.Name, string(src.Frequency), src.AmountCents, boolToInt(src.Active))
	if err != nil {
		return perr("create_income_source", err)
	}
	return nil
}

func (s *SQLiteStore) GetIncomeOccurrence(ctx context.Context, userID, occurrenceID string) (core.IncomeOccurrence, error) {
	var o core.IncomeOccurrence
	var scheduled, status, posted, month string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, source_id, scheduled_at, net_cents, status, posted_at, tx_id, budget_month
		FROM income_occurrences WHERE user_id = ? AND id = ?`,
		userID, occurrenceID).Scan(&o.ID, &o.UserID, &o.SourceID, &scheduled,
		&o.NetCents, &status, &posted, &o.TxID, &month)
	if errors.Is(err, sql.ErrNoRows) {
		return core.IncomeOccurrence{}, &core.NotFoundError{Kind: "occurrence", ID: occurrenceID}
	}
	if err != nil {
		return core.IncomeOccurrence{}, perr("get_income_occurrence", err)
	}
	o.ScheduledAt = textToTime(scheduled)
	o.Status = core.OccurrenceStatus(status)
	o.PostedAt = textToTime(posted)
	o.BudgetMonth = core.Month(month)
	return o, nil
}

func (s *SQLiteStore) ListIncomeOccurrences(ctx context.Context, userID string) ([]core.IncomeOccurrence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, source_id, scheduled_at, net_cents, status, posted_at, tx_id, budget_month
		FROM income_occurrences WHERE user_id = ? ORDER BY scheduled_at`, userID)
	if err != nil {
		return nil, perr("list_income_occurrences", err)
	}
	defer rows.Close()

	var out []core.IncomeOccurrence
	for rows.Next() {
		var o core.IncomeOccurrence
		var scheduled, status, posted, month string
		if err := rows.Scan(&o.ID, &o.UserID, &o.SourceID, &scheduled,
			&o.NetCents, &status, &posted, &o.TxID, &month); err != nil {
			return nil, perr("list_income_occurrences.scan", err)
		}
		o.ScheduledAt = textToTime(scheduled)
		o.Status = core.OccurrenceStatus(status)
		o.PostedAt = textToTime(posted)
		o.BudgetMonth = core.Month(month)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, perr("list_income_occurrences", err)
	}
	return out, nil
}

func (s *SQLiteStore) CreateIncomeOccurrence(ctx context.Context, o core.IncomeOccurrence) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO income_occurrences (id, user_id, source_id, scheduled_at, net_cents, status, posted_at, tx_id, budget_month)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.SourceID, timeToText(o.ScheduledAt), o.NetCents,
		string(o.Status), timeToText(o.PostedAt), o.TxID, string(o.BudgetMonth))
	if err != nil {
		return perr("create_income_occurrence", err)
	}
	return nil
}

func (s *SQLiteStore) GetBill(ctx context.Context, userID, billID string) (core.Bill, error) {
	var b core.Bill
	var freq string
	var weekday, autopay int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, category_id, amount_cents, frequency, day_of_month, weekday, every_n, autopay_enabled, account_id
		FROM bills WHERE user_id = ? AND id = ?`,
		userID, billID).Scan(&b.ID, &b.UserID, &b.Name, &b.CategoryID,
		&b.AmountCents, &freq, &b.DayOfMonth, &weekday, &b.EveryN, &autopay, &b.AccountID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, &core.NotFoundError{Kind: "bill", ID: billID}
	}
	if err != nil {
		return core.Bill{}, perr("get_bill", err)
	}
	b.Frequency = core.Frequency(freq)
	b.Weekday = time.Weekday(weekday)
	b.AutopayEnabled = autopay != 0
	return b, nil
}

func (s *SQLiteStore) ListBills(ctx context.Context, userID string) ([]core.Bill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, category_id, amount_cents, frequency, day_of_month, weekday, every_n, autopay_enabled, account_id
		FROM bills WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, perr("list_bills", err)
	}
	defer rows.Close()

	var out []core.Bill
	for rows.Next() {
		var b core.Bill
		var freq string
		var weekday, autopay int
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.CategoryID, &b.AmountCents,
			&freq, &b.DayOfMonth, &weekday, &b.EveryN, &autopay, &b.AccountID); err != nil {
			return nil, perr("list_bills.scan", err)
		}
		b.Frequency = core.Frequency(freq)
		b.Weekday = time.Weekday(weekday)
		b.AutopayEnabled = autopay != 0
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, perr("list_bills", err)
	}
	return out, nil
}

func (s *SQLiteStore) CreateBill(ctx context.Context, b core.Bill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bills (id, user_id, name, category_id, amount_cents, frequency, day_of_month, weekday, every_n, autopay_enabled, account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Name, b.CategoryID, b.AmountCents, string(b.Frequency),
		b.DayOfMonth, int(b.Weekday), b.EveryN, boolToInt(b.AutopayEnabled), b.AccountID)
	if err != nil {
		return perr("create_bill", err)
	}
	return nil
}

func (s *SQLiteStore) ListBillOccurrences(ctx context.Context, userID, billID string) ([]core.BillOccurrence, error) {
	query := `SELECT id, user_id, bill_id, due_date, status, paid_tx_id
		FROM bill_occurrences WHERE user_id = ?`
	args := []any{userID}
	if billID != "" {
		query += ` AND bill_id = ?`
		args = append(args, billID)
	}
	query += ` ORDER BY due_date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, perr("list_bill_occurrences", err)
	}
	defer rows.Close()

	var out []core.BillOccurrence
	for rows.Next() {
		var o core.BillOccurrence
		var due, status string
		if err := rows.Scan(&o.ID, &o.UserID, &o.BillID, &due, &status, &o.PaidTxID); err != nil {
			return nil, perr("list_bill_occurrences.scan", err)
		}
		o.DueDate = textToTime(due)
		o.Status = core.BillOccurrenceStatus(status)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, perr("list_bill_occurrences", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string, month core.Month) ([]core.Transaction, error) {
	query := `SELECT id, user_id, tx_date, amount_cents, tx_type, category_id, account_id, budget_month, bill_id, source_id
		FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if month != "" {
		query += ` AND budget_month = ?`
		args = append(args, string(month))
	}
	query += ` ORDER BY tx_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, perr("list_transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var date, txType, m string
		if err := rows.Scan(&t.ID, &t.UserID, &date, &t.AmountCents, &txType,
			&t.CategoryID, &t.AccountID, &m, &t.BillID, &t.SourceID); err != nil {
			return nil, perr("list_transactions.scan", err)
		}
		t.Date = textToTime(date)
		t.Type = core.TransactionType(txType)
		t.BudgetMonth = core.Month(m)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, perr("list_transactions", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM bills
		UNION SELECT user_id FROM income_sources
		ORDER BY user_id`)
	if err != nil {
		return nil, perr("list_user_ids", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, perr("list_user_ids.scan", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, perr("list_user_ids", err)
	}
	return out, nil
}

var _ Store = (*SQLiteStore)(nil)
