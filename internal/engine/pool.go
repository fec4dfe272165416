package engine

import (
	"sort"

	"budgetflow/internal/core"
)

// RebuildPool re-derives the unassigned pool from raw credits. A month's entry
// is the sum of its uncategorized credits minus the credits that were split out
// of it. Entries that net to zero or less are dropped. IDs are left empty for
// the store to assign.
func RebuildPool(credits []core.Credit) []core.UnassignedCredit {
	byMonth := map[core.Month]core.Money{}
	for _, c := range credits {
		if c.Unassigned() {
			m := c.Date.Month()
			byMonth[m] = byMonth[m].Add(c.Amount)
		}
		if c.SourceMonth != nil {
			byMonth[*c.SourceMonth] = byMonth[*c.SourceMonth].Sub(c.Amount)
		}
	}
	out := make([]core.UnassignedCredit, 0, len(byMonth))
	for m, amount := range byMonth {
		if amount.Cents <= 0 {
			continue
		}
		out = append(out, core.UnassignedCredit{Month: m, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// PoolTotal sums every pool entry.
func PoolTotal(entries []core.UnassignedCredit) core.Money {
	var total core.Money
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}

// ComposeBankBalance is accumulated + unassigned + initial. No clamping.
func ComposeBankBalance(totalAccumulated, unassigned, initial core.Money) core.Money {
	return totalAccumulated.Add(unassigned).Add(initial)
}
