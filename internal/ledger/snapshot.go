package ledger

import (
	"context"
	"fmt"

	"budgetflow/internal/core"
)

// Snapshot is the subset of the ledger needed to derive one year's aggregates.
type Snapshot struct {
	Year           int
	Budgets        []core.Budget
	Expenses       []core.Expense
	Credits        []core.Credit
	CardCharges    []core.CreditCardExpense
	Pool           []core.UnassignedCredit
	SalaryMonths   []core.Month
	InitialBalance core.Money
}

// LoadSnapshot reads everything dated in year plus the year-independent state
// (pool, salary flags, initial balance).
func LoadSnapshot(ctx context.Context, s Store, year int) (Snapshot, error) {
	snap := Snapshot{Year: year}
	r := YearRange(year)

	var err error
	if snap.Budgets, err = s.ListBudgets(ctx, core.NewMonth(year, 1), core.NewMonth(year, 12)); err != nil {
		return Snapshot{}, fmt.Errorf("load budgets: %w", err)
	}
	if snap.Expenses, err = s.ListExpenses(ctx, Filter{Range: r}); err != nil {
		return Snapshot{}, fmt.Errorf("load expenses: %w", err)
	}
	if snap.Credits, err = s.ListCredits(ctx, Filter{Range: r}); err != nil {
		return Snapshot{}, fmt.Errorf("load credits: %w", err)
	}
	if snap.CardCharges, err = s.ListCreditCardExpenses(ctx, Filter{Range: r}, false); err != nil {
		return Snapshot{}, fmt.Errorf("load credit card expenses: %w", err)
	}
	if snap.Pool, err = s.ListPool(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load unassigned pool: %w", err)
	}
	if snap.SalaryMonths, err = s.ListSalaryMonths(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load salary months: %w", err)
	}
	if snap.InitialBalance, err = s.InitialBalance(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load initial balance: %w", err)
	}
	return snap, nil
}
