package core

import (
	"errors"
	"fmt"
)

// Validation sentinels. Returned before any mutation takes place.
var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidMonth     = errors.New("invalid month, expected YYYY-MM")
	ErrInvalidDay       = errors.New("invalid day of month")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrInvalidTxType    = errors.New("invalid transaction type")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrEmptyName        = errors.New("empty name")
	ErrNameTooLong      = errors.New("name too long (max 100 characters)")
	ErrEmptyUserID      = errors.New("empty user id")

	// ErrInvalidMonthChoice rejects deferring received income to the next
	// month outside the end-of-month window, or to any other month.
	ErrInvalidMonthChoice = errors.New("invalid budget month choice for income receipt")
)

// OverAssignmentError rejects an assignment that would push Ready-to-Assign
// below zero without an over-assign override. ShortfallCents is the exact
// amount by which the assignment exceeds what is available.
type OverAssignmentError struct {
	Month          Month
	ShortfallCents int64
}

func (e *OverAssignmentError) Error() string {
	return fmt.Sprintf("over-assignment in %s: short by %s", e.Month, Money{Cents: e.ShortfallCents})
}

// NotFoundError reports an unknown entity reference.
type NotFoundError struct {
	Kind string // "bill", "category", "occurrence", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// AlreadyProcessedError is the idempotency guard: the caller attempted to
// re-apply an action that transitions exactly once (receiving an income
// occurrence, paying a settled bill occurrence). The first application stands
// unchanged; the rejection tells the caller this call had no effect.
type AlreadyProcessedError struct {
	Kind string
	ID   string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%s %s already processed", e.Kind, e.ID)
}

// ConflictError signals a lost update on a versioned write. The caller must
// reload and retry with fresh state.
type ConflictError struct {
	Kind            string
	ID              string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s %s: expected %d, found %d",
		e.Kind, e.ID, e.ExpectedVersion, e.ActualVersion)
}

// PersistenceError wraps a storage collaborator failure. Retryable; never
// silently swallowed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient storage failure the caller
// may retry with the same arguments.
func IsRetryable(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
