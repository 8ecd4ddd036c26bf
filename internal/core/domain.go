package core

import (
	"strings"
	"time"
)

// Frequency of a recurring income source or bill.
type Frequency string

const (
	Weekly      Frequency = "weekly"
	Biweekly    Frequency = "biweekly"
	Semimonthly Frequency = "semimonthly"
	Monthly     Frequency = "monthly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Biweekly, Semimonthly, Monthly:
		return true
	}
	return false
}

// OccurrenceStatus tracks an income occurrence through its lifecycle.
// Transitions SCHEDULED -> RECEIVED exactly once; re-receiving is rejected.
type OccurrenceStatus string

const (
	OccurrenceScheduled OccurrenceStatus = "SCHEDULED"
	OccurrenceReceived  OccurrenceStatus = "RECEIVED"
)

// BillOccurrenceStatus tracks a bill occurrence.
type BillOccurrenceStatus string

const (
	BillUpcoming BillOccurrenceStatus = "upcoming"
	BillOverdue  BillOccurrenceStatus = "overdue"
	BillPaid     BillOccurrenceStatus = "paid"
	BillSkipped  BillOccurrenceStatus = "skipped"
)

// TransactionType classifies a ledger transaction.
type TransactionType string

const (
	TxIncome   TransactionType = "income"
	TxExpense  TransactionType = "expense"
	TxTransfer TransactionType = "transfer"
)

type (
	// Category is a budget envelope. Never deleted while referenced by a
	// BudgetItem.
	Category struct {
		ID                 string
		UserID             string
		Name               string
		GroupID            string // empty = ungrouped
		SortOrder          int
		Rollover           bool
		Priority           int // 1 = highest
		MonthlyBudgetCents int64
		LinkedBillID       string // empty = no linked bill
	}

	// CategoryGroup is a pure organizational unit.
	CategoryGroup struct {
		ID        string
		UserID    string
		Name      string
		SortOrder int
	}

	// BudgetMonth holds the per-month income picture for one user. Created
	// lazily on first assignment. Version supports optimistic concurrency
	// on the stored record.
	BudgetMonth struct {
		ID                  string
		UserID              string
		Month               Month
		ExpectedIncomeCents int64
		ReceivedIncomeCents int64
		AllowOverAssign     bool
		Version             int64
	}

	// BudgetItem is the per (month, category) allocation record. Created on
	// first assignment or first linked spend; updated on every assignment or
	// transaction; never physically deleted.
	BudgetItem struct {
		ID                    string
		UserID                string
		Month                 Month
		CategoryID            string
		AssignedCents         int64
		SpentCents            int64
		LeftoverFromPrevCents int64
	}

	// IncomeSource is a recurring income definition.
	IncomeSource struct {
		ID          string
		UserID      string
		Name        string
		Frequency   Frequency
		AmountCents int64
		Active      bool
	}

	// IncomeOccurrence is one scheduled instance of an IncomeSource.
	IncomeOccurrence struct {
		ID          string
		UserID      string
		SourceID    string
		ScheduledAt time.Time
		NetCents    int64
		Status      OccurrenceStatus
		PostedAt    time.Time // zero until received
		TxID        string    // empty until received
		BudgetMonth Month     // empty until received
	}

	// Bill is a recurring obligation.
	Bill struct {
		ID             string
		UserID         string
		Name           string
		CategoryID     string // empty = unlinked
		AmountCents    int64
		Frequency      Frequency
		DayOfMonth     int          // monthly/semimonthly anchor day
		Weekday        time.Weekday // weekly/biweekly anchor
		EveryN         int          // cadence multiplier, 0 means 1
		AutopayEnabled bool
		AccountID      string
	}

	// BillOccurrence is one due instance of a Bill.
	BillOccurrence struct {
		ID       string
		UserID   string
		BillID   string
		DueDate  time.Time
		Status   BillOccurrenceStatus
		PaidTxID string
	}

	// BillPayment records a settled bill occurrence. It always has exactly
	// one corresponding Transaction, written atomically with it.
	BillPayment struct {
		ID          string
		UserID      string
		BillID      string
		TxID        string
		PaidAt      time.Time
		AmountCents int64
		AccountID   string
	}

	// Transaction is the unifying ledger entry for income and spend.
	// AmountCents is signed: negative = outflow.
	Transaction struct {
		ID          string
		UserID      string
		Date        time.Time
		AmountCents int64
		Type        TransactionType
		CategoryID  string
		AccountID   string
		BudgetMonth Month
		BillID      string // back-reference, expense only
		SourceID    string // back-reference, income only
	}
)

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return ErrNameTooLong
	}
	if c.Priority < 0 {
		return ErrInvalidPriority
	}
	if c.MonthlyBudgetCents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (g CategoryGroup) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if len(g.Name) > 100 {
		return ErrNameTooLong
	}
	return nil
}

func (s IncomeSource) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if !s.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if s.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Bill) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if !b.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if b.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	switch b.Frequency {
	case Monthly, Semimonthly:
		if b.DayOfMonth < 1 || b.DayOfMonth > 31 {
			return ErrInvalidDay
		}
	}
	if b.EveryN < 0 {
		return ErrInvalidSchedule
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.AmountCents == 0 {
		return ErrInvalidAmount
	}
	switch t.Type {
	case TxIncome:
		if t.AmountCents < 0 {
			return ErrInvalidAmount
		}
	case TxExpense:
		if t.AmountCents > 0 {
			return ErrInvalidAmount
		}
	case TxTransfer:
	default:
		return ErrInvalidTxType
	}
	return t.BudgetMonth.Validate()
}
