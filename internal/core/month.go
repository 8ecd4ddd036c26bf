package core

import (
	"regexp"
	"time"
)

// Month is a budget month in "YYYY-MM" form. It is the accounting period a
// transaction or assignment is attributed to, which may differ from the
// calendar month of the underlying event (see the end-of-month threshold
// rule on income receipt).
type Month string

var monthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ParseMonth validates s and returns it as a Month.
func ParseMonth(s string) (Month, error) {
	if !monthPattern.MatchString(s) {
		return "", ErrInvalidMonth
	}
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", ErrInvalidMonth
	}
	return Month(s), nil
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month(t.Format("2006-01"))
}

// Validate checks the YYYY-MM shape.
func (m Month) Validate() error {
	_, err := ParseMonth(string(m))
	return err
}

func (m Month) String() string { return string(m) }

func (m Month) time() time.Time {
	t, _ := time.Parse("2006-01", string(m))
	return t
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	return MonthOf(m.time().AddDate(0, 1, 0))
}

// Prev returns the preceding calendar month.
func (m Month) Prev() Month {
	return MonthOf(m.time().AddDate(0, -1, 0))
}

// Contains reports whether t falls inside the calendar month.
func (m Month) Contains(t time.Time) bool {
	return MonthOf(t) == m
}

// DaysUntilEnd returns how many whole days remain between t and the last day
// of the month, counting the last day itself as 0.
func (m Month) DaysUntilEnd(t time.Time) int {
	lastDay := m.time().AddDate(0, 1, -1)
	return lastDay.Day() - t.Day()
}
