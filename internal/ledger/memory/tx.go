package memory

import (
	"context"
	"time"

	"budgetflow/internal/core"
	"budgetflow/internal/ledger"
)

var _ ledger.Store = (*txStore)(nil)

func (t *txStore) o() ops { return ops{t.st, t.parent.check} }

func (t *txStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	return t.o().listCategories()
}

func (t *txStore) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	return t.o().createCategory(c)
}

func (t *txStore) DeleteCategory(ctx context.Context, name string) error {
	return t.o().deleteCategory(name)
}

func (t *txStore) UpsertBudget(ctx context.Context, b core.Budget) error {
	return t.o().upsertBudget(b)
}

func (t *txStore) DeleteBudget(ctx context.Context, category string, m core.Month) error {
	return t.o().deleteBudget(category, m)
}

func (t *txStore) ListBudgets(ctx context.Context, from, to core.Month) ([]core.Budget, error) {
	return t.o().listBudgets(from, to), nil
}

func (t *txStore) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	return t.o().createExpense(e)
}

func (t *txStore) UpdateExpense(ctx context.Context, e core.Expense) error {
	return t.o().updateExpense(e)
}

func (t *txStore) DeleteExpense(ctx context.Context, id string) error {
	return t.o().deleteExpense(id)
}

func (t *txStore) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return t.o().getExpense(id)
}

func (t *txStore) ListExpenses(ctx context.Context, f ledger.Filter) ([]core.Expense, error) {
	return t.o().listExpenses(f), nil
}

func (t *txStore) CreateCredit(ctx context.Context, c core.Credit) (core.Credit, error) {
	return t.o().createCredit(c)
}

func (t *txStore) UpdateCredit(ctx context.Context, c core.Credit) error {
	return t.o().updateCredit(c)
}

func (t *txStore) DeleteCredit(ctx context.Context, id string) error {
	return t.o().deleteCredit(id)
}

func (t *txStore) GetCredit(ctx context.Context, id string) (core.Credit, error) {
	return t.o().getCredit(id)
}

func (t *txStore) ListCredits(ctx context.Context, f ledger.Filter) ([]core.Credit, error) {
	return t.o().listCredits(&f), nil
}

func (t *txStore) ListAllCredits(ctx context.Context) ([]core.Credit, error) {
	return t.o().listCredits(nil), nil
}

func (t *txStore) CreateCreditCardExpense(ctx context.Context, c core.CreditCardExpense) (core.CreditCardExpense, error) {
	return t.o().createCard(c)
}

func (t *txStore) GetCreditCardExpense(ctx context.Context, id string) (core.CreditCardExpense, error) {
	return t.o().getCard(id)
}

func (t *txStore) MarkCreditCardPaid(ctx context.Context, id string, at time.Time) error {
	return t.o().markCardPaid(id, at)
}

func (t *txStore) ListCreditCardExpenses(ctx context.Context, f ledger.Filter, unpaidOnly bool) ([]core.CreditCardExpense, error) {
	return t.o().listCards(f, unpaidOnly), nil
}

func (t *txStore) AddToPool(ctx context.Context, m core.Month, amount core.Money) (core.UnassignedCredit, error) {
	return t.o().addToPool(m, amount)
}

func (t *txStore) GetPoolEntry(ctx context.Context, id string) (core.UnassignedCredit, error) {
	return t.o().getPoolEntry(id)
}

func (t *txStore) ListPool(ctx context.Context) ([]core.UnassignedCredit, error) {
	return t.o().listPool(), nil
}

func (t *txStore) UpdatePoolEntry(ctx context.Context, e core.UnassignedCredit) error {
	return t.o().updatePoolEntry(e)
}

func (t *txStore) DeletePoolEntry(ctx context.Context, id string) error {
	return t.o().deletePoolEntry(id)
}

func (t *txStore) ReplacePool(ctx context.Context, entries []core.UnassignedCredit) error {
	return t.o().replacePool(entries)
}

func (t *txStore) SetSalaryMonth(ctx context.Context, m core.Month) error {
	return t.o().setSalary(m)
}

func (t *txStore) ClearSalaryMonth(ctx context.Context, m core.Month) error {
	return t.o().clearSalary(m)
}

func (t *txStore) ListSalaryMonths(ctx context.Context) ([]core.Month, error) {
	return t.o().listSalary(), nil
}

func (t *txStore) InitialBalance(ctx context.Context) (core.Money, error) {
	return t.st.initial, nil
}

func (t *txStore) SetInitialBalance(ctx context.Context, m core.Money) error {
	if err := t.parent.check("set_initial_balance"); err != nil {
		return err
	}
	t.st.initial = m
	return nil
}
