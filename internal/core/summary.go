package core

// CategoryLine is one category's row in a month summary.
type CategoryLine struct {
	CategoryID    string
	Name          string
	AssignedCents int64
	SpentCents    int64
	LeftoverCents int64
}

// MonthSummary is the Ready-to-Assign snapshot for one (user, month):
// the income picture, the allocation totals, and the per-category lines.
type MonthSummary struct {
	Month               Month
	ExpectedIncomeCents int64
	ReceivedIncomeCents int64
	LeftoverCents       int64 // sum of carried leftovers
	OverspendCarryCents int64 // prior-month overspend reducing this month's pool
	AssignedCents       int64
	RTACents            int64
	Categories          []CategoryLine
}
