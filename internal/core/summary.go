package core

// CategorySummary is the derived budget position of one category in one month.
// Budget is the declared budget plus categorized credits; Remaining is always
// Budget minus Spent and may be negative.
type CategorySummary struct {
	Category  string
	Month     Month
	Declared  Money
	Credited  Money
	Budget    Money
	Spent     Money
	Remaining Money
}

// OverBudget reports whether spending exceeded the effective budget.
func (s CategorySummary) OverBudget() bool {
	return s.Remaining.IsNegative()
}

// MonthBalance is one point of a category's carry-forward series.
type MonthBalance struct {
	Month       Month
	Remaining   Money
	Accumulated Money
}

// AccumulatedBalance is the running carry-forward total of a category over the
// accumulation window of a year.
type AccumulatedBalance struct {
	Category string
	Year     int
	Total    Money
	Series   []MonthBalance
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}
