// Package engine holds the pure budget calculations: ledger snapshot in,
// derived aggregates out. Nothing here touches a store or a clock.
package engine

import (
	"sort"

	"budgetflow/internal/core"
	"budgetflow/internal/ledger"
)

// Summarize returns one CategorySummary per category that has a declared
// budget, an expense or a categorized credit in month. A missing budget counts
// as zero. Unpaid credit-card charges and pool credits never contribute.
func Summarize(snap ledger.Snapshot, month core.Month) []core.CategorySummary {
	rows := map[string]*core.CategorySummary{}
	row := func(category string) *core.CategorySummary {
		r, ok := rows[category]
		if !ok {
			r = &core.CategorySummary{Category: category, Month: month}
			rows[category] = r
		}
		return r
	}

	for _, b := range snap.Budgets {
		if b.Month == month {
			r := row(b.Category)
			r.Declared = r.Declared.Add(b.Amount)
		}
	}
	for _, e := range snap.Expenses {
		if month.Contains(e.Date.Time) {
			r := row(e.Category)
			r.Spent = r.Spent.Add(e.Amount)
		}
	}
	for _, c := range snap.Credits {
		if c.Unassigned() || !month.Contains(c.Date.Time) {
			continue
		}
		r := row(c.Category)
		r.Credited = r.Credited.Add(c.Amount)
	}

	out := make([]core.CategorySummary, 0, len(rows))
	for _, r := range rows {
		r.Budget = r.Declared.Add(r.Credited)
		r.Remaining = r.Budget.Sub(r.Spent)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// OverBudget keeps the summaries whose remaining amount is negative.
func OverBudget(summaries []core.CategorySummary) []core.CategorySummary {
	var out []core.CategorySummary
	for _, s := range summaries {
		if s.OverBudget() {
			out = append(out, s)
		}
	}
	return out
}

// RemainingFor returns the remaining amount of category in summaries, zero
// when the category has no row.
func RemainingFor(summaries []core.CategorySummary, category string) core.Money {
	for _, s := range summaries {
		if s.Category == category {
			return s.Remaining
		}
	}
	return core.Money{}
}

// TotalDeclared sums the declared budgets of month across categories.
func TotalDeclared(budgets []core.Budget, month core.Month) core.Money {
	var total core.Money
	for _, b := range budgets {
		if b.Month == month {
			total = total.Add(b.Amount)
		}
	}
	return total
}

// OutstandingDebt groups unpaid credit-card charges by category.
func OutstandingDebt(charges []core.CreditCardExpense) []core.CategoryAmount {
	byCat := map[string]core.Money{}
	for _, c := range charges {
		if c.Paid {
			continue
		}
		byCat[c.Category] = byCat[c.Category].Add(c.Amount)
	}
	out := make([]core.CategoryAmount, 0, len(byCat))
	for name, amount := range byCat {
		out = append(out, core.CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
