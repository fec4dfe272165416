// Package services holds the ledger write path: validation, store writes,
// pool reconciliation and the events that trigger recomputation.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"budgetflow/internal/core"
	"budgetflow/internal/engine"
	"budgetflow/internal/events"
	"budgetflow/internal/ledger"
)

const (
	salaryOverflowDescription = "Salary overflow"
	maxDescriptionLen         = 200
)

// LedgerService applies ingress mutations to the ledger and announces them.
// A failed publish never fails the mutation: the write already happened and
// the next event or rollover check recomputes everything it touched.
type LedgerService struct {
	store          ledger.Store
	publisher      events.Publisher
	reconciler     *Reconciler
	salaryCategory string
	now            func() time.Time
}

type Option func(*LedgerService)

// WithSalaryCategory overrides the category whose credits flag salary months.
func WithSalaryCategory(name string) Option {
	return func(s *LedgerService) {
		if strings.TrimSpace(name) != "" {
			s.salaryCategory = name
		}
	}
}

// WithClock sets the time source used for payment dates.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(store ledger.Store, publisher events.Publisher, reconciler *Reconciler, opts ...Option) *LedgerService {
	if reconciler == nil {
		reconciler = NewReconciler(store, ExactSplit{})
	}
	s := &LedgerService{
		store:          store,
		publisher:      publisher,
		reconciler:     reconciler,
		salaryCategory: core.DefaultSalaryCategory,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SalaryCategory returns the configured salary category name.
func (s *LedgerService) SalaryCategory() string { return s.salaryCategory }

// Reconciler exposes the pool reconciler.
func (s *LedgerService) Reconciler() *Reconciler { return s.reconciler }

func (s *LedgerService) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping event", "kind", e.Kind)
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", e.Kind,
			"entity_id", e.EntityID,
			"error", err)
	}
}

// inTx runs fn atomically when the store supports transactions.
func (s *LedgerService) inTx(ctx context.Context, fn func(ledger.Store) error) error {
	if tx, ok := s.store.(ledger.Transactor); ok {
		return tx.RunInTx(ctx, fn)
	}
	return fn(s.store)
}

func (s *LedgerService) CreateCategory(ctx context.Context, name, icon string) (core.Category, error) {
	c := core.Category{Name: strings.TrimSpace(name), Icon: icon}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

// DeleteCategory removes a category and its budgets.
func (s *LedgerService) DeleteCategory(ctx context.Context, name string) error {
	if err := s.store.DeleteCategory(ctx, name); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.publish(ctx, events.New(events.CategoryDeleted, name))
	return nil
}

func (s *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

// SetBudget creates or replaces the declared budget for a category and month.
func (s *LedgerService) SetBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := s.store.UpsertBudget(ctx, b); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	s.publish(ctx, events.New(events.BudgetChanged, b.Category, b.Month))
	return nil
}

func (s *LedgerService) DeleteBudget(ctx context.Context, category string, month core.Month) error {
	if err := s.store.DeleteBudget(ctx, category, month); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	s.publish(ctx, events.New(events.BudgetChanged, category, month))
	return nil
}

func (s *LedgerService) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.PaymentMethod == "" {
		e.PaymentMethod = core.PaymentCash
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.publish(ctx, events.New(events.ExpenseAdded, created.ID, created.Date.Month()))
	return created, nil
}

// EditExpense replaces an expense; both the old and new months are refreshed.
func (s *LedgerService) EditExpense(ctx context.Context, e core.Expense) error {
	if e.PaymentMethod == "" {
		e.PaymentMethod = core.PaymentCash
	}
	if err := e.Validate(); err != nil {
		return err
	}
	old, err := s.store.GetExpense(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	s.publish(ctx, events.New(events.ExpenseEdited, e.ID, old.Date.Month(), e.Date.Month()))
	return nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id string) error {
	old, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.publish(ctx, events.New(events.ExpenseDeleted, id, old.Date.Month()))
	return nil
}

// AddCredit records a credit. An uncategorized credit is merged into its
// month's pool entry in the same write.
func (s *LedgerService) AddCredit(ctx context.Context, c core.Credit) (core.Credit, error) {
	if err := c.Validate(); err != nil {
		return core.Credit{}, err
	}
	c.Category = strings.TrimSpace(c.Category)

	var created core.Credit
	err := s.inTx(ctx, func(st ledger.Store) error {
		var err error
		if created, err = st.CreateCredit(ctx, c); err != nil {
			return fmt.Errorf("save credit: %w", err)
		}
		if created.Unassigned() {
			if _, err := addOrMerge(ctx, st, created.Date.Month(), created.Amount); err != nil {
				return err
			}
		}
		return s.flagSalaryMonth(ctx, st, created)
	})
	if err != nil {
		return core.Credit{}, err
	}

	s.reconcileSalaryMonths(ctx)
	s.publish(ctx, events.New(events.CreditAdded, created.ID, created.Date.Month()))
	return created, nil
}

// EditCredit replaces a credit. Pool consistency is restored by the forced
// rebuild the resulting event triggers.
func (s *LedgerService) EditCredit(ctx context.Context, c core.Credit) error {
	if err := c.Validate(); err != nil {
		return err
	}
	old, err := s.store.GetCredit(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("get credit: %w", err)
	}
	c.Category = strings.TrimSpace(c.Category)
	if c.SourceMonth == nil {
		c.SourceMonth = old.SourceMonth
	}
	err = s.inTx(ctx, func(st ledger.Store) error {
		if err := st.UpdateCredit(ctx, c); err != nil {
			return fmt.Errorf("update credit: %w", err)
		}
		return s.flagSalaryMonth(ctx, st, c)
	})
	if err != nil {
		return err
	}

	s.reconcileSalaryMonths(ctx)
	s.publish(ctx, events.New(events.CreditEdited, c.ID, old.Date.Month(), c.Date.Month()))
	return nil
}

// flagSalaryMonth flags the month of a salary credit so it joins the
// accumulation window.
func (s *LedgerService) flagSalaryMonth(ctx context.Context, st ledger.Store, c core.Credit) error {
	if c.Category != s.salaryCategory {
		return nil
	}
	if err := st.SetSalaryMonth(ctx, c.Date.Month()); err != nil {
		return fmt.Errorf("flag salary month: %w", err)
	}
	return nil
}

func (s *LedgerService) DeleteCredit(ctx context.Context, id string) error {
	old, err := s.store.GetCredit(ctx, id)
	if err != nil {
		return fmt.Errorf("get credit: %w", err)
	}
	if err := s.store.DeleteCredit(ctx, id); err != nil {
		return fmt.Errorf("delete credit: %w", err)
	}

	s.reconcileSalaryMonths(ctx)
	s.publish(ctx, events.New(events.CreditDeleted, id, old.Date.Month()))
	return nil
}

func (s *LedgerService) AddCreditCardExpense(ctx context.Context, c core.CreditCardExpense) (core.CreditCardExpense, error) {
	c.Paid = false
	c.PaidAt = time.Time{}
	if err := c.Validate(); err != nil {
		return core.CreditCardExpense{}, err
	}
	created, err := s.store.CreateCreditCardExpense(ctx, c)
	if err != nil {
		return core.CreditCardExpense{}, fmt.Errorf("save credit card expense: %w", err)
	}
	s.publish(ctx, events.New(events.CreditCardAdded, created.ID, created.Date.Month()))
	return created, nil
}

// PayCreditCard settles one or more card charges. Each becomes an expense
// dated today with the credit_card_due payment method. If any charge is
// already paid nothing is written.
func (s *LedgerService) PayCreditCard(ctx context.Context, ids ...string) ([]core.Expense, error) {
	if len(ids) == 0 {
		return nil, ErrNothingToSettle
	}
	charges := make([]core.CreditCardExpense, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		c, err := s.store.GetCreditCardExpense(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get credit card expense: %w", err)
		}
		if c.Paid {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyPaid, id)
		}
		charges = append(charges, c)
	}

	paidAt := s.now().UTC()
	day := core.DateOf(paidAt)
	var expenses []core.Expense
	err := s.inTx(ctx, func(st ledger.Store) error {
		expenses = expenses[:0]
		for _, c := range charges {
			e, err := st.CreateExpense(ctx, core.Expense{
				Category:      c.Category,
				Amount:        c.Amount,
				Description:   truncate("Card payment: "+c.Description, maxDescriptionLen),
				Date:          day,
				CreatedAt:     paidAt,
				PaymentMethod: core.PaymentCreditCardDue,
			})
			if err != nil {
				return fmt.Errorf("save card payment for %s: %w", c.ID, err)
			}
			if err := st.MarkCreditCardPaid(ctx, c.ID, paidAt); err != nil {
				return fmt.Errorf("mark %s paid: %w", c.ID, err)
			}
			expenses = append(expenses, e)
		}
		return nil
	})
	if err != nil {
		return expenses, err
	}

	slog.InfoContext(ctx, "Credit card expenses paid",
		"count", len(expenses),
		"date", day.Format("2006-01-02"))
	s.publish(ctx, events.New(events.CreditCardPaid, strings.Join(ids, ","), day.Month()))
	return expenses, nil
}

// SalaryResult describes what RecordSalary wrote.
type SalaryResult struct {
	Credit   core.Credit
	Overflow *core.Credit
	Pool     *core.UnassignedCredit
}

// RecordSalary books a salary for the month of date. The part that fits the
// month's total declared budget becomes a salary credit; any excess becomes
// an uncategorized credit in that month's pool. The month is flagged so it
// joins the accumulation window even when it lies in the future.
func (s *LedgerService) RecordSalary(ctx context.Context, amount core.Money, date core.Date) (SalaryResult, error) {
	if err := amount.Validate(); err != nil {
		return SalaryResult{}, err
	}
	if err := date.Validate(); err != nil {
		return SalaryResult{}, err
	}
	month := date.Month()

	budgets, err := s.store.ListBudgets(ctx, month, month)
	if err != nil {
		return SalaryResult{}, fmt.Errorf("list budgets: %w", err)
	}
	declared := engine.TotalDeclared(budgets, month)
	booked := amount
	if declared.Cents > 0 {
		booked = amount.Min(declared)
	}
	overflow := amount.Sub(booked)

	var res SalaryResult
	err = s.inTx(ctx, func(st ledger.Store) error {
		c, err := st.CreateCredit(ctx, core.Credit{
			Category:    s.salaryCategory,
			Amount:      booked,
			Description: s.salaryCategory,
			Date:        date,
		})
		if err != nil {
			return fmt.Errorf("save salary credit: %w", err)
		}
		res.Credit = c

		if overflow.Cents > 0 {
			o, err := st.CreateCredit(ctx, core.Credit{
				Amount:      overflow,
				Description: salaryOverflowDescription,
				Date:        date,
			})
			if err != nil {
				return fmt.Errorf("save salary overflow: %w", err)
			}
			entry, err := addOrMerge(ctx, st, month, overflow)
			if err != nil {
				return err
			}
			res.Overflow, res.Pool = &o, &entry
		}

		if err := st.SetSalaryMonth(ctx, month); err != nil {
			return fmt.Errorf("flag salary month: %w", err)
		}
		return nil
	})
	if err != nil {
		return SalaryResult{}, err
	}

	slog.InfoContext(ctx, "Salary recorded",
		"month", month.Key(),
		"booked", booked.String(),
		"overflow", overflow.String())
	s.publish(ctx, events.New(events.SalaryRecorded, res.Credit.ID, month))
	return res, nil
}

// SplitUnassigned splits a pool entry into categorized credits using the
// reconciler's policy. A partial split still announces the credits it wrote.
func (s *LedgerService) SplitUnassigned(ctx context.Context, entryID string, assignments []Assignment) ([]core.Credit, error) {
	entry, err := s.store.GetPoolEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("get pool entry: %w", err)
	}

	written, splitErr := s.reconciler.Split(ctx, entryID, assignments)
	var partial *PartialSplitError
	if splitErr != nil && !errors.As(splitErr, &partial) {
		return nil, splitErr
	}

	months := []core.Month{entry.Month}
	for _, c := range written {
		months = append(months, c.Date.Month())
	}
	s.reconcileSalaryMonths(ctx)
	s.publish(ctx, events.New(events.UnassignedSplit, entryID, months...))
	return written, splitErr
}

func (s *LedgerService) SetInitialBalance(ctx context.Context, m core.Money) error {
	if err := s.store.SetInitialBalance(ctx, m); err != nil {
		return fmt.Errorf("set initial balance: %w", err)
	}
	s.publish(ctx, events.New(events.InitialBalanceSet, ""))
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
