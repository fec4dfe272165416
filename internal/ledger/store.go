// Package ledger defines the Ledger Store port: the raw facts the budget engine
// reads. Implementations hold no derived fields except the unassigned-credit
// pool, which is an index over uncategorized credits.
package ledger

import (
	"context"
	"errors"
	"time"

	"budgetflow/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Range is a half-open [From, To) date interval.
type Range struct {
	From time.Time
	To   time.Time
}

// MonthRange returns the range covering a single month.
func MonthRange(m core.Month) Range {
	from, to := m.Range()
	return Range{From: from, To: to}
}

// YearRange returns the range covering a calendar year.
func YearRange(year int) Range {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Range{From: from, To: from.AddDate(1, 0, 0)}
}

// Contains reports whether t is inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Filter narrows range reads. An empty Category matches every category.
type Filter struct {
	Range    Range
	Category string
}

type (
	CategoryStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		// DeleteCategory removes the category and every budget declared for it.
		DeleteCategory(ctx context.Context, name string) error
	}

	BudgetStore interface {
		UpsertBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, category string, month core.Month) error
		ListBudgets(ctx context.Context, from, to core.Month) ([]core.Budget, error)
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		UpdateExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, id string) error
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		ListExpenses(ctx context.Context, f Filter) ([]core.Expense, error)
	}

	CreditStore interface {
		CreateCredit(ctx context.Context, c core.Credit) (core.Credit, error)
		UpdateCredit(ctx context.Context, c core.Credit) error
		DeleteCredit(ctx context.Context, id string) error
		GetCredit(ctx context.Context, id string) (core.Credit, error)
		ListCredits(ctx context.Context, f Filter) ([]core.Credit, error)
		// ListAllCredits returns every credit regardless of date; used to
		// rebuild the pool.
		ListAllCredits(ctx context.Context) ([]core.Credit, error)
	}

	CreditCardStore interface {
		CreateCreditCardExpense(ctx context.Context, c core.CreditCardExpense) (core.CreditCardExpense, error)
		GetCreditCardExpense(ctx context.Context, id string) (core.CreditCardExpense, error)
		MarkCreditCardPaid(ctx context.Context, id string, at time.Time) error
		ListCreditCardExpenses(ctx context.Context, f Filter, unpaidOnly bool) ([]core.CreditCardExpense, error)
	}

	PoolStore interface {
		// AddToPool merges amount into the entry for month, creating it if needed.
		AddToPool(ctx context.Context, month core.Month, amount core.Money) (core.UnassignedCredit, error)
		GetPoolEntry(ctx context.Context, id string) (core.UnassignedCredit, error)
		ListPool(ctx context.Context) ([]core.UnassignedCredit, error)
		UpdatePoolEntry(ctx context.Context, e core.UnassignedCredit) error
		DeletePoolEntry(ctx context.Context, id string) error
		// ReplacePool swaps the whole pool for entries in one bulk upsert.
		ReplacePool(ctx context.Context, entries []core.UnassignedCredit) error
	}

	SalaryStore interface {
		SetSalaryMonth(ctx context.Context, m core.Month) error
		ClearSalaryMonth(ctx context.Context, m core.Month) error
		ListSalaryMonths(ctx context.Context) ([]core.Month, error)
	}

	SettingsStore interface {
		InitialBalance(ctx context.Context) (core.Money, error)
		SetInitialBalance(ctx context.Context, m core.Money) error
	}

	// Store is the full ledger.
	Store interface {
		CategoryStore
		BudgetStore
		ExpenseStore
		CreditStore
		CreditCardStore
		PoolStore
		SalaryStore
		SettingsStore
	}

	// Transactor is implemented by stores that can run a group of writes
	// atomically. fn receives a Store bound to the transaction.
	Transactor interface {
		RunInTx(ctx context.Context, fn func(tx Store) error) error
	}
)
