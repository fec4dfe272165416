package engine

import (
	"sort"
	"time"

	"budgetflow/internal/core"
)

// AccumulationWindow lists the months of year that take part in carry-forward:
// January through the current calendar month, plus any later month of year
// flagged as a salary month. Past years are fully included; future years only
// contribute their flagged months.
func AccumulationWindow(year int, now time.Time, salaryMonths []core.Month) []core.Month {
	cut := time.Month(0)
	switch {
	case year < now.Year():
		cut = time.December
	case year == now.Year():
		cut = now.Month()
	}

	seen := map[core.Month]struct{}{}
	var window []core.Month
	for mo := time.January; mo <= cut; mo++ {
		m := core.Month{Year: year, Month: mo}
		seen[m] = struct{}{}
		window = append(window, m)
	}
	for _, m := range salaryMonths {
		if m.Year != year {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		window = append(window, m)
	}
	sort.Slice(window, func(i, j int) bool { return window[i].Before(window[j]) })
	return window
}

// Accumulate folds per-month summaries over window into a running total per
// category. Totals may go negative. Categories with no row in any window month
// are left out.
func Accumulate(summaries map[core.Month][]core.CategorySummary, window []core.Month) []core.AccumulatedBalance {
	if len(window) == 0 {
		return nil
	}
	remaining := map[string]map[core.Month]core.Money{}
	for _, m := range window {
		for _, s := range summaries[m] {
			if remaining[s.Category] == nil {
				remaining[s.Category] = map[core.Month]core.Money{}
			}
			remaining[s.Category][m] = s.Remaining
		}
	}

	out := make([]core.AccumulatedBalance, 0, len(remaining))
	for category, byMonth := range remaining {
		acc := core.AccumulatedBalance{Category: category, Year: window[0].Year}
		for _, m := range window {
			r := byMonth[m]
			acc.Total = acc.Total.Add(r)
			acc.Series = append(acc.Series, core.MonthBalance{Month: m, Remaining: r, Accumulated: acc.Total})
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// TotalAccumulated sums the accumulated balance of every category.
func TotalAccumulated(balances []core.AccumulatedBalance) core.Money {
	var total core.Money
	for _, b := range balances {
		total = total.Add(b.Total)
	}
	return total
}

// AccumulatedFor returns the total for category, zero when absent.
func AccumulatedFor(balances []core.AccumulatedBalance, category string) core.Money {
	for _, b := range balances {
		if b.Category == category {
			return b.Total
		}
	}
	return core.Money{}
}
