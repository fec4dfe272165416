package memory

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"budgetflow/internal/core"
	"budgetflow/internal/ledger"
)

// ops implements the store operations over a state. Callers hold the lock.
type ops struct {
	st    *state
	check func(op string) error
}

func (o ops) listCategories() ([]core.Category, error) {
	out := append([]core.Category(nil), o.st.categories...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (o ops) createCategory(c core.Category) (core.Category, error) {
	if err := o.check("create_category"); err != nil {
		return core.Category{}, err
	}
	for _, existing := range o.st.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return core.Category{}, ledger.ErrConflict
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	o.st.categories = append(o.st.categories, c)
	return c, nil
}

func (o ops) deleteCategory(name string) error {
	if err := o.check("delete_category"); err != nil {
		return err
	}
	kept := o.st.categories[:0]
	found := false
	for _, c := range o.st.categories {
		if c.Name == name {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return notFound("category", name)
	}
	o.st.categories = kept
	for k, b := range o.st.budgets {
		if b.Category == name {
			delete(o.st.budgets, k)
		}
	}
	return nil
}

func (o ops) upsertBudget(b core.Budget) error {
	if err := o.check("upsert_budget"); err != nil {
		return err
	}
	o.st.budgets[budgetKey(b.Category, b.Month)] = b
	return nil
}

func (o ops) deleteBudget(category string, m core.Month) error {
	if err := o.check("delete_budget"); err != nil {
		return err
	}
	k := budgetKey(category, m)
	if _, ok := o.st.budgets[k]; !ok {
		return notFound("budget", k)
	}
	delete(o.st.budgets, k)
	return nil
}

func (o ops) listBudgets(from, to core.Month) []core.Budget {
	var out []core.Budget
	for _, b := range o.st.budgets {
		if b.Month.Before(from) || b.Month.After(to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func (o ops) createExpense(e core.Expense) (core.Expense, error) {
	if err := o.check("create_expense"); err != nil {
		return core.Expense{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	o.st.expenses[e.ID] = e
	return e, nil
}

func (o ops) updateExpense(e core.Expense) error {
	if err := o.check("update_expense"); err != nil {
		return err
	}
	old, ok := o.st.expenses[e.ID]
	if !ok {
		return notFound("expense", e.ID)
	}
	e.CreatedAt = old.CreatedAt
	o.st.expenses[e.ID] = e
	return nil
}

func (o ops) deleteExpense(id string) error {
	if err := o.check("delete_expense"); err != nil {
		return err
	}
	if _, ok := o.st.expenses[id]; !ok {
		return notFound("expense", id)
	}
	delete(o.st.expenses, id)
	return nil
}

func (o ops) getExpense(id string) (core.Expense, error) {
	e, ok := o.st.expenses[id]
	if !ok {
		return core.Expense{}, notFound("expense", id)
	}
	return e, nil
}

func matches(f ledger.Filter, category string, t time.Time) bool {
	if f.Category != "" && f.Category != category {
		return false
	}
	if f.Range.From.IsZero() && f.Range.To.IsZero() {
		return true
	}
	return f.Range.Contains(t)
}

func (o ops) listExpenses(f ledger.Filter) []core.Expense {
	var out []core.Expense
	for _, e := range o.st.expenses {
		if matches(f, e.Category, e.Date.Time) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (o ops) createCredit(c core.Credit) (core.Credit, error) {
	if err := o.check("create_credit"); err != nil {
		return core.Credit{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	o.st.credits[c.ID] = c
	return c, nil
}

func (o ops) updateCredit(c core.Credit) error {
	if err := o.check("update_credit"); err != nil {
		return err
	}
	old, ok := o.st.credits[c.ID]
	if !ok {
		return notFound("credit", c.ID)
	}
	c.CreatedAt = old.CreatedAt
	o.st.credits[c.ID] = c
	return nil
}

func (o ops) deleteCredit(id string) error {
	if err := o.check("delete_credit"); err != nil {
		return err
	}
	if _, ok := o.st.credits[id]; !ok {
		return notFound("credit", id)
	}
	delete(o.st.credits, id)
	return nil
}

func (o ops) getCredit(id string) (core.Credit, error) {
	c, ok := o.st.credits[id]
	if !ok {
		return core.Credit{}, notFound("credit", id)
	}
	return c, nil
}

// listCredits returns every credit when f is nil.
func (o ops) listCredits(f *ledger.Filter) []core.Credit {
	var out []core.Credit
	for _, c := range o.st.credits {
		if f == nil || matches(*f, c.Category, c.Date.Time) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (o ops) createCard(c core.CreditCardExpense) (core.CreditCardExpense, error) {
	if err := o.check("create_credit_card_expense"); err != nil {
		return core.CreditCardExpense{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	o.st.cards[c.ID] = c
	return c, nil
}

func (o ops) getCard(id string) (core.CreditCardExpense, error) {
	c, ok := o.st.cards[id]
	if !ok {
		return core.CreditCardExpense{}, notFound("credit card expense", id)
	}
	return c, nil
}

func (o ops) markCardPaid(id string, at time.Time) error {
	if err := o.check("mark_credit_card_paid"); err != nil {
		return err
	}
	c, ok := o.st.cards[id]
	if !ok {
		return notFound("credit card expense", id)
	}
	c.Paid = true
	c.PaidAt = at
	o.st.cards[id] = c
	return nil
}

func (o ops) listCards(f ledger.Filter, unpaidOnly bool) []core.CreditCardExpense {
	var out []core.CreditCardExpense
	for _, c := range o.st.cards {
		if unpaidOnly && c.Paid {
			continue
		}
		if matches(f, c.Category, c.Date.Time) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (o ops) addToPool(m core.Month, amount core.Money) (core.UnassignedCredit, error) {
	if err := o.check("add_to_pool"); err != nil {
		return core.UnassignedCredit{}, err
	}
	for id, e := range o.st.pool {
		if e.Month == m {
			e.Amount = e.Amount.Add(amount)
			o.st.pool[id] = e
			return e, nil
		}
	}
	e := core.UnassignedCredit{ID: uuid.NewString(), Month: m, Amount: amount}
	o.st.pool[e.ID] = e
	return e, nil
}

func (o ops) getPoolEntry(id string) (core.UnassignedCredit, error) {
	e, ok := o.st.pool[id]
	if !ok {
		return core.UnassignedCredit{}, notFound("pool entry", id)
	}
	return e, nil
}

func (o ops) listPool() []core.UnassignedCredit {
	out := make([]core.UnassignedCredit, 0, len(o.st.pool))
	for _, e := range o.st.pool {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

func (o ops) updatePoolEntry(e core.UnassignedCredit) error {
	if err := o.check("update_pool_entry"); err != nil {
		return err
	}
	if _, ok := o.st.pool[e.ID]; !ok {
		return notFound("pool entry", e.ID)
	}
	o.st.pool[e.ID] = e
	return nil
}

func (o ops) deletePoolEntry(id string) error {
	if err := o.check("delete_pool_entry"); err != nil {
		return err
	}
	if _, ok := o.st.pool[id]; !ok {
		return notFound("pool entry", id)
	}
	delete(o.st.pool, id)
	return nil
}

func (o ops) replacePool(entries []core.UnassignedCredit) error {
	if err := o.check("replace_pool"); err != nil {
		return err
	}
	// Keep ids stable for months that survive the rebuild.
	byMonth := map[core.Month]string{}
	for id, e := range o.st.pool {
		byMonth[e.Month] = id
	}
	next := make(map[string]core.UnassignedCredit, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			if id, ok := byMonth[e.Month]; ok {
				e.ID = id
			} else {
				e.ID = uuid.NewString()
			}
		}
		next[e.ID] = e
	}
	o.st.pool = next
	return nil
}

func (o ops) setSalary(m core.Month) error {
	if err := o.check("set_salary_month"); err != nil {
		return err
	}
	o.st.salary[m] = struct{}{}
	return nil
}

func (o ops) clearSalary(m core.Month) error {
	if err := o.check("clear_salary_month"); err != nil {
		return err
	}
	delete(o.st.salary, m)
	return nil
}

func (o ops) listSalary() []core.Month {
	out := make([]core.Month, 0, len(o.st.salary))
	for m := range o.st.salary {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
