package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"budgetflow/internal/core"
	"budgetflow/internal/ledger"
)

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(context.Background())
	if len(cats) != 0 {
		t.Fatalf("expected no categories when seed file missing, got %v", cats)
	}

	content := "# header\nFood\nTravel\nFood\n\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(context.Background())
	if len(cats) != 2 || cats[0].Name != "Food" || cats[1].Name != "Travel" {
		t.Fatalf("unexpected cats: %v", cats)
	}
}

func TestPoolAddMergesByMonth(t *testing.T) {
	ctx := context.Background()
	s := New()
	feb := core.NewMonth(2025, 2)

	first, err := s.AddToPool(ctx, feb, core.Cents(1000))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := s.AddToPool(ctx, feb, core.Cents(250))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.ID != second.ID || second.Amount.Cents != 1250 {
		t.Fatalf("expected merged entry, got %+v then %+v", first, second)
	}
	pool, _ := s.ListPool(ctx)
	if len(pool) != 1 {
		t.Fatalf("expected one entry, got %d", len(pool))
	}
}

func TestListExpensesByRangeAndCategory(t *testing.T) {
	ctx := context.Background()
	s := New()
	add := func(cat string, d core.Date) {
		t.Helper()
		if _, err := s.CreateExpense(ctx, core.Expense{Category: cat, Amount: core.Cents(100), Date: d, PaymentMethod: core.PaymentCash}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	add("Food", core.NewDate(2025, 1, 31))
	add("Food", core.NewDate(2025, 2, 1))
	add("Travel", core.NewDate(2025, 2, 10))

	feb := ledger.MonthRange(core.NewMonth(2025, 2))
	all, _ := s.ListExpenses(ctx, ledger.Filter{Range: feb})
	if len(all) != 2 {
		t.Fatalf("expected 2 february expenses, got %d", len(all))
	}
	food, _ := s.ListExpenses(ctx, ledger.Filter{Range: feb, Category: "Food"})
	if len(food) != 1 || !food[0].Date.Equal(core.NewDate(2025, 2, 1).Time) {
		t.Fatalf("unexpected food expenses: %+v", food)
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx ledger.Store) error {
		if _, err := tx.CreateCredit(ctx, core.Credit{Category: "Food", Amount: core.Cents(10), Date: core.NewDate(2025, 3, 1)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	credits, _ := s.ListAllCredits(ctx)
	if len(credits) != 0 {
		t.Fatalf("expected rollback, found %d credits", len(credits))
	}
}

func TestDeleteCategoryRemovesBudgets(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.CreateCategory(ctx, core.Category{Name: "Food"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	_ = s.UpsertBudget(ctx, core.Budget{Category: "Food", Month: core.NewMonth(2025, 1), Amount: core.Cents(500)})
	_ = s.UpsertBudget(ctx, core.Budget{Category: "Rent", Month: core.NewMonth(2025, 1), Amount: core.Cents(900)})

	if err := s.DeleteCategory(ctx, "Food"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	budgets, _ := s.ListBudgets(ctx, core.NewMonth(2025, 1), core.NewMonth(2025, 12))
	if len(budgets) != 1 || budgets[0].Category != "Rent" {
		t.Fatalf("unexpected budgets after delete: %+v", budgets)
	}
	if err := s.DeleteCategory(ctx, "Food"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFailOnAbortsWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.FailOn = func(op string) error {
		if op == "mark_credit_card_paid" {
			return errors.New("store unavailable")
		}
		return nil
	}
	c, err := s.CreateCreditCardExpense(ctx, core.CreditCardExpense{Category: "Food", Amount: core.Cents(500), Description: "x", Date: core.NewDate(2025, 5, 2)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkCreditCardPaid(ctx, c.ID, time.Now()); err == nil {
		t.Fatalf("expected injected failure")
	}
	got, _ := s.GetCreditCardExpense(ctx, c.ID)
	if got.Paid {
		t.Fatalf("charge should remain unpaid")
	}
}
