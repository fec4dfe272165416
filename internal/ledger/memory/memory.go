package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetflow/internal/core"
	"budgetflow/internal/ledger"
)

type state struct {
	categories []core.Category
	budgets    map[string]core.Budget // category|month
	expenses   map[string]core.Expense
	credits    map[string]core.Credit
	cards      map[string]core.CreditCardExpense
	pool       map[string]core.UnassignedCredit
	salary     map[core.Month]struct{}
	initial    core.Money
}

func newState() *state {
	return &state{
		budgets:  map[string]core.Budget{},
		expenses: map[string]core.Expense{},
		credits:  map[string]core.Credit{},
		cards:    map[string]core.CreditCardExpense{},
		pool:     map[string]core.UnassignedCredit{},
		salary:   map[core.Month]struct{}{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.categories = append([]core.Category(nil), s.categories...)
	for k, v := range s.budgets {
		c.budgets[k] = v
	}
	for k, v := range s.expenses {
		c.expenses[k] = v
	}
	for k, v := range s.credits {
		c.credits[k] = v
	}
	for k, v := range s.cards {
		c.cards[k] = v
	}
	for k, v := range s.pool {
		c.pool[k] = v
	}
	for k := range s.salary {
		c.salary[k] = struct{}{}
	}
	c.initial = s.initial
	return c
}

// Store is an in-memory ledger. It is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	st *state

	// FailOn, when set, is consulted before every write; a non-nil return
	// aborts the write with that error. Tests use it to simulate outages.
	FailOn func(op string) error
}

var (
	_ ledger.Store      = (*Store)(nil)
	_ ledger.Transactor = (*Store)(nil)
)

func New() *Store {
	return &Store{st: newState()}
}

// NewFromFiles seeds categories from base/seed_categories.txt when present.
func NewFromFiles(base string) *Store {
	s := New()
	for _, name := range readLines(filepath.Join(base, "seed_categories.txt")) {
		s.st.categories = append(s.st.categories, core.Category{ID: uuid.NewString(), Name: name})
	}
	return s
}

func (s *Store) check(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op)
}

// RunInTx runs fn against a copy of the state and swaps it in only if fn
// succeeds. The store lock is held for the whole call.
func (s *Store) RunInTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &txStore{parent: s, st: s.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// txStore shares the method set of Store but operates on a private state
// without taking the lock again.
type txStore struct {
	parent *Store
	st     *state
}

func budgetKey(category string, m core.Month) string {
	return category + "|" + m.Key()
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.listCategories()
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.createCategory(c)
}

func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.deleteCategory(name)
}

func (s *Store) UpsertBudget(ctx context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.upsertBudget(b)
}

func (s *Store) DeleteBudget(ctx context.Context, category string, m core.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.deleteBudget(category, m)
}

func (s *Store) ListBudgets(ctx context.Context, from, to core.Month) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.listBudgets(from, to), nil
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.createExpense(e)
}

func (s *Store) UpdateExpense(ctx context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.updateExpense(e)
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.deleteExpense(id)
}

func (s *Store) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.getExpense(id)
}

func (s *Store) ListExpenses(ctx context.Context, f ledger.Filter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.listExpenses(f), nil
}

func (s *Store) CreateCredit(ctx context.Context, c core.Credit) (core.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.createCredit(c)
}

func (s *Store) UpdateCredit(ctx context.Context, c core.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.updateCredit(c)
}

func (s *Store) DeleteCredit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.deleteCredit(id)
}

func (s *Store) GetCredit(ctx context.Context, id string) (core.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.getCredit(id)
}

func (s *Store) ListCredits(ctx context.Context, f ledger.Filter) ([]core.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.listCredits(&f), nil
}

func (s *Store) ListAllCredits(ctx context.Context) ([]core.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.listCredits(nil), nil
}

func (s *Store) CreateCreditCardExpense(ctx context.Context, c core.CreditCardExpense) (core.CreditCardExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.createCard(c)
}

func (s *Store) GetCreditCardExpense(ctx context.Context, id string) (core.CreditCardExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.getCard(id)
}

func (s *Store) MarkCreditCardPaid(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.markCardPaid(id, at)
}

func (s *Store) ListCreditCardExpenses(ctx context.Context, f ledger.Filter, unpaidOnly bool) ([]core.CreditCardExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.listCards(f, unpaidOnly), nil
}

func (s *Store) AddToPool(ctx context.Context, m core.Month, amount core.Money) (core.UnassignedCredit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.addToPool(m, amount)
}

func (s *Store) GetPoolEntry(ctx context.Context, id string) (core.UnassignedCredit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.getPoolEntry(id)
}

func (s *Store) ListPool(ctx context.Context) ([]core.UnassignedCredit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.listPool(), nil
}

func (s *Store) UpdatePoolEntry(ctx context.Context, e core.UnassignedCredit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.updatePoolEntry(e)
}

func (s *Store) DeletePoolEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.deletePoolEntry(id)
}

func (s *Store) ReplacePool(ctx context.Context, entries []core.UnassignedCredit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.replacePool(entries)
}

func (s *Store) SetSalaryMonth(ctx context.Context, m core.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.setSalary(m)
}

func (s *Store) ClearSalaryMonth(ctx context.Context, m core.Month) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.clearSalary(m)
}

func (s *Store) ListSalaryMonths(ctx context.Context) ([]core.Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ops{s.st, s.check}.listSalary(), nil
}

func (s *Store) InitialBalance(ctx context.Context) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.initial, nil
}

func (s *Store) SetInitialBalance(ctx context.Context, m core.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("set_initial_balance"); err != nil {
		return err
	}
	s.st.initial = m
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ledger.ErrNotFound)
}
