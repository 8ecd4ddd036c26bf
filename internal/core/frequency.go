package core

import "github.com/shopspring/decimal"

// MonthlyConverter converts a per-occurrence amount into a monthly-equivalent
// amount for a given frequency. It is a named policy, not a law: the default
// uses fixed average multipliers, but callers may inject a calendar-exact
// implementation instead.
type MonthlyConverter func(f Frequency, amountCents int64) int64

// Fixed average occurrences-per-month multipliers. Documented approximation
// (52/12 ~ 4.33, 26/12 ~ 2.17), not calendar-exact.
var monthlyMultipliers = map[Frequency]decimal.Decimal{
	Weekly:      decimal.RequireFromString("4.33"),
	Biweekly:    decimal.RequireFromString("2.17"),
	Semimonthly: decimal.NewFromInt(2),
	Monthly:     decimal.NewFromInt(1),
}

// DefaultMonthlyEquivalent converts amountCents to a monthly equivalent
// using the fixed multiplier table, half-up rounded to whole cents.
// Unknown frequencies convert to 0.
func DefaultMonthlyEquivalent(f Frequency, amountCents int64) int64 {
	mult, ok := monthlyMultipliers[f]
	if !ok {
		return 0
	}
	return decimal.NewFromInt(amountCents).Mul(mult).Round(0).IntPart()
}
