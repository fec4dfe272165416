package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"budgetflow/internal/core"
	"budgetflow/internal/ledger"
)

// RepositoryTestSuite runs the ledger contract against a throwaway database file.
type RepositoryTestSuite struct {
	suite.Suite
	repo *SQLiteRepository
	ctx  context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	// A file rather than :memory: because migrations open their own connection.
	path := filepath.Join(s.T().TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(s.T(), err, "failed to create test database")
	s.repo = repo
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) TestMigrationsAreIdempotent() {
	assert.NoError(s.T(), RunMigrations(filepath.Join(s.T().TempDir(), "again.db")))
	path := filepath.Join(s.T().TempDir(), "twice.db")
	require.NoError(s.T(), RunMigrations(path))
	assert.NoError(s.T(), RunMigrations(path))
}

func (s *RepositoryTestSuite) TestPing() {
	assert.NoError(s.T(), s.repo.Ping(s.ctx))
	require.NoError(s.T(), s.repo.Close())
	assert.Error(s.T(), s.repo.Ping(s.ctx))
	s.repo = nil
}

func (s *RepositoryTestSuite) TestCategoryConflictAndCascade() {
	t := s.T()
	_, err := s.repo.CreateCategory(s.ctx, core.Category{Name: "Food"})
	require.NoError(t, err)

	_, err = s.repo.CreateCategory(s.ctx, core.Category{Name: "food"})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	jan := core.NewMonth(2025, 1)
	require.NoError(t, s.repo.UpsertBudget(s.ctx, core.Budget{Category: "Food", Month: jan, Amount: core.Cents(500)}))
	require.NoError(t, s.repo.DeleteCategory(s.ctx, "Food"))

	budgets, err := s.repo.ListBudgets(s.ctx, jan, jan)
	require.NoError(t, err)
	assert.Empty(t, budgets)

	assert.ErrorIs(t, s.repo.DeleteCategory(s.ctx, "Food"), ledger.ErrNotFound)
}

func (s *RepositoryTestSuite) TestUpsertBudgetOverwrites() {
	t := s.T()
	feb := core.NewMonth(2025, 2)
	require.NoError(t, s.repo.UpsertBudget(s.ctx, core.Budget{Category: "Rent", Month: feb, Amount: core.Cents(100)}))
	require.NoError(t, s.repo.UpsertBudget(s.ctx, core.Budget{Category: "Rent", Month: feb, Amount: core.Cents(900)}))

	budgets, err := s.repo.ListBudgets(s.ctx, core.NewMonth(2025, 1), core.NewMonth(2025, 12))
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, int64(900), budgets[0].Amount.Cents)
	assert.Equal(t, feb, budgets[0].Month)
}

func (s *RepositoryTestSuite) TestExpenseRangeReads() {
	t := s.T()
	for _, d := range []core.Date{core.NewDate(2025, 1, 31), core.NewDate(2025, 2, 1), core.NewDate(2025, 2, 28), core.NewDate(2025, 3, 1)} {
		_, err := s.repo.CreateExpense(s.ctx, core.Expense{
			Category:    "Food",
			Amount:      core.Cents(100),
			Description: "groceries",
			Date:        d,
		})
		require.NoError(t, err)
	}

	feb, err := s.repo.ListExpenses(s.ctx, ledger.Filter{Range: ledger.MonthRange(core.NewMonth(2025, 2))})
	require.NoError(t, err)
	require.Len(t, feb, 2)
	assert.Equal(t, core.NewDate(2025, 2, 1), feb[0].Date)
	assert.Equal(t, core.PaymentCash, feb[0].PaymentMethod)

	none, err := s.repo.ListExpenses(s.ctx, ledger.Filter{Range: ledger.YearRange(2025), Category: "Travel"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func (s *RepositoryTestSuite) TestExpenseUpdateAndDelete() {
	t := s.T()
	e, err := s.repo.CreateExpense(s.ctx, core.Expense{
		Category:    "Food",
		Amount:      core.Cents(100),
		Description: "lunch",
		Date:        core.NewDate(2025, 4, 2),
	})
	require.NoError(t, err)

	e.Amount = core.Cents(250)
	e.Date = core.NewDate(2025, 5, 2)
	require.NoError(t, s.repo.UpdateExpense(s.ctx, e))

	got, err := s.repo.GetExpense(s.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.Amount.Cents)
	assert.Equal(t, core.NewMonth(2025, 5), got.Date.Month())

	require.NoError(t, s.repo.DeleteExpense(s.ctx, e.ID))
	_, err = s.repo.GetExpense(s.ctx, e.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.ErrorIs(t, s.repo.DeleteExpense(s.ctx, e.ID), ledger.ErrNotFound)
}

func (s *RepositoryTestSuite) TestCreditSourceMonthRoundTrip() {
	t := s.T()
	feb := core.NewMonth(2025, 2)
	split, err := s.repo.CreateCredit(s.ctx, core.Credit{
		Category:    "Food",
		Amount:      core.Cents(600),
		Description: "Split from unassigned credit 2025-02",
		Date:        core.NewDate(2025, 3, 1),
		SourceMonth: &feb,
	})
	require.NoError(t, err)
	_, err = s.repo.CreateCredit(s.ctx, core.Credit{
		Amount:      core.Cents(1000),
		Description: "refund",
		Date:        core.NewDate(2024, 12, 9),
	})
	require.NoError(t, err)

	got, err := s.repo.GetCredit(s.ctx, split.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SourceMonth)
	assert.Equal(t, feb, *got.SourceMonth)

	all, err := s.repo.ListAllCredits(s.ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Unassigned())
	assert.Nil(t, all[0].SourceMonth)
}

func (s *RepositoryTestSuite) TestCreditCardPaidFilter() {
	t := s.T()
	c, err := s.repo.CreateCreditCardExpense(s.ctx, core.CreditCardExpense{
		Category:    "Tech",
		Amount:      core.Cents(9900),
		Description: "keyboard",
		Date:        core.NewDate(2025, 6, 1),
	})
	require.NoError(t, err)

	at := time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.repo.MarkCreditCardPaid(s.ctx, c.ID, at))

	unpaid, err := s.repo.ListCreditCardExpenses(s.ctx, ledger.Filter{Range: ledger.YearRange(2025)}, true)
	require.NoError(t, err)
	assert.Empty(t, unpaid)

	got, err := s.repo.GetCreditCardExpense(s.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.True(t, at.Equal(got.PaidAt))

	assert.ErrorIs(t, s.repo.MarkCreditCardPaid(s.ctx, "missing", at), ledger.ErrNotFound)
}

func (s *RepositoryTestSuite) TestPoolMergeAndReplace() {
	t := s.T()
	jan, feb := core.NewMonth(2025, 1), core.NewMonth(2025, 2)

	first, err := s.repo.AddToPool(s.ctx, jan, core.Cents(300))
	require.NoError(t, err)
	merged, err := s.repo.AddToPool(s.ctx, jan, core.Cents(200))
	require.NoError(t, err)
	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, int64(500), merged.Amount.Cents)

	_, err = s.repo.AddToPool(s.ctx, feb, core.Cents(50))
	require.NoError(t, err)

	require.NoError(t, s.repo.ReplacePool(s.ctx, []core.UnassignedCredit{{Month: jan, Amount: core.Cents(700)}}))

	pool, err := s.repo.ListPool(s.ctx)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, first.ID, pool[0].ID)
	assert.Equal(t, int64(700), pool[0].Amount.Cents)

	require.NoError(t, s.repo.ReplacePool(s.ctx, nil))
	pool, err = s.repo.ListPool(s.ctx)
	require.NoError(t, err)
	assert.Empty(t, pool)
}

func (s *RepositoryTestSuite) TestSalaryMonthsAndInitialBalance() {
	t := s.T()
	mar := core.NewMonth(2025, 3)
	require.NoError(t, s.repo.SetSalaryMonth(s.ctx, mar))
	require.NoError(t, s.repo.SetSalaryMonth(s.ctx, mar))

	months, err := s.repo.ListSalaryMonths(s.ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Month{mar}, months)

	require.NoError(t, s.repo.ClearSalaryMonth(s.ctx, mar))
	months, err = s.repo.ListSalaryMonths(s.ctx)
	require.NoError(t, err)
	assert.Empty(t, months)

	bal, err := s.repo.InitialBalance(s.ctx)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	require.NoError(t, s.repo.SetInitialBalance(s.ctx, core.Cents(-1250)))
	bal, err = s.repo.InitialBalance(s.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-1250), bal.Cents)
}

func (s *RepositoryTestSuite) TestUsersAreIsolated() {
	t := s.T()
	alice := s.repo.ForUser("alice")
	bob := s.repo.ForUser("bob")

	_, err := alice.CreateExpense(s.ctx, core.Expense{
		Category:    "Food",
		Amount:      core.Cents(100),
		Description: "pizza",
		Date:        core.NewDate(2025, 1, 1),
	})
	require.NoError(t, err)
	_, err = bob.AddToPool(s.ctx, core.NewMonth(2025, 1), core.Cents(10))
	require.NoError(t, err)

	got, err := bob.ListExpenses(s.ctx, ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	pool, err := alice.ListPool(s.ctx)
	require.NoError(t, err)
	assert.Empty(t, pool)
}

func (s *RepositoryTestSuite) TestRunInTxRollsBack() {
	t := s.T()
	boom := errors.New("boom")

	err := s.repo.RunInTx(s.ctx, func(tx ledger.Store) error {
		if _, err := tx.AddToPool(s.ctx, core.NewMonth(2025, 1), core.Cents(100)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	pool, err := s.repo.ListPool(s.ctx)
	require.NoError(t, err)
	assert.Empty(t, pool)

	require.NoError(t, s.repo.RunInTx(s.ctx, func(tx ledger.Store) error {
		_, err := tx.AddToPool(s.ctx, core.NewMonth(2025, 1), core.Cents(100))
		return err
	}))
	pool, err = s.repo.ListPool(s.ctx)
	require.NoError(t, err)
	assert.Len(t, pool, 1)
}

func (s *RepositoryTestSuite) TestSnapshotLoadsYear() {
	t := s.T()
	require.NoError(t, s.repo.UpsertBudget(s.ctx, core.Budget{Category: "Food", Month: core.NewMonth(2025, 1), Amount: core.Cents(100)}))
	require.NoError(t, s.repo.UpsertBudget(s.ctx, core.Budget{Category: "Food", Month: core.NewMonth(2024, 12), Amount: core.Cents(100)}))

	snap, err := ledger.LoadSnapshot(s.ctx, s.repo, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2025, snap.Year)
	assert.Len(t, snap.Budgets, 1)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
