package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetflow/internal/core"
)

func TestReaderComputesMissesFromStore(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	_, err := store.CreateCreditCardExpense(ctx, core.CreditCardExpense{Category: "Travel", Amount: core.Cents(4200), Description: "train", Date: core.NewDate(2025, 5, 4)})
	require.NoError(t, err)
	results := NewResults(0)
	r := NewReader(store, results, clock)

	summaries, err := r.CategorySummaries(ctx, may)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	_, ok := results.Summaries(may)
	assert.True(t, ok, "miss is stored in the summary namespace")

	remaining, err := r.RemainingForMonth(ctx, "Food", may)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), remaining.Cents)

	food, err := r.AccumulatedBalance(ctx, "Food", 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), food.Cents)

	missing, err := r.AccumulatedBalance(ctx, "Rent", 2025)
	require.NoError(t, err)
	assert.True(t, missing.IsZero())

	bank, err := r.BankBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(112000), bank.Cents)

	debt, err := r.OutstandingDebt(ctx)
	require.NoError(t, err)
	require.Len(t, debt, 1)
	assert.Equal(t, "Travel", debt[0].Name)
	assert.Equal(t, int64(4200), debt[0].Amount.Cents)
}

func TestReaderOverBudget(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	require.NoError(t, store.UpsertBudget(ctx, core.Budget{Category: "Fun", Month: may, Amount: core.Cents(1000)}))
	_, err := store.CreateExpense(ctx, core.Expense{Category: "Fun", Amount: core.Cents(1500), Description: "concert", Date: core.NewDate(2025, 5, 9)})
	require.NoError(t, err)

	over, err := NewReader(store, NewResults(0), clock).OverBudgetCategories(ctx, may)
	require.NoError(t, err)
	require.Len(t, over, 1)
	assert.Equal(t, "Fun", over[0].Category)
	assert.Equal(t, int64(-500), over[0].Remaining.Cents)
}

func TestReaderPastYearUsesFullWindow(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	for mo := 1; mo <= 12; mo++ {
		require.NoError(t, store.UpsertBudget(ctx, core.Budget{Category: "Rent", Month: core.NewMonth(2024, mo), Amount: core.Cents(100)}))
	}
	total, err := NewReader(store, NewResults(0), clock).TotalAccumulatedBalance(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), total.Cents)
}

func TestReaderServesCommittedResults(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{Store: seededStore(t)}
	c := newCoordinator(store, Config{})
	require.NoError(t, c.RunNow(ctx, false))

	reads := store.reads.Load()
	r := NewReader(store, c.Results(), clock)
	_, err := r.CategorySummaries(ctx, march)
	require.NoError(t, err)
	_, err = r.TotalAccumulatedBalance(ctx, 2025)
	require.NoError(t, err)
	_, err = r.BankBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, reads, store.reads.Load(), "hits never touch the store")
}

func TestReaderCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{Store: seededStore(t)}
	r := NewReader(store, NewResults(0), clock)

	release := store.hold()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.CategorySummaries(ctx, may)
			assert.NoError(t, err)
			assert.Len(t, s, 1)
		}()
	}
	store.waitEntered(t)
	time.Sleep(30 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, int32(1), store.reads.Load())
}

func TestReaderSharedMissSurvivesLeaderCancel(t *testing.T) {
	store := &gatedStore{Store: seededStore(t)}
	r := NewReader(store, NewResults(0), clock)

	release := store.hold()
	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _ = r.CategorySummaries(leaderCtx, may)
	}()
	store.waitEntered(t)

	followerErr := make(chan error, 1)
	go func() {
		_, err := r.CategorySummaries(context.Background(), may)
		followerErr <- err
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	release()

	assert.NoError(t, <-followerErr)
	<-leaderDone
	_, ok := r.results.Summaries(may)
	assert.True(t, ok)
}
