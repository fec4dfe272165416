package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetflow/internal/core"
	"budgetflow/internal/events"
)

func TestRolloverCheckPublishesOnMonthChange(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	c := NewRolloverChecker(rec, time.Hour)

	var mu sync.Mutex
	now := time.Date(2025, 1, 31, 23, 59, 0, 0, time.UTC)
	c.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	rolled, err := c.Check(ctx)
	require.NoError(t, err)
	assert.False(t, rolled, "first check only records the month")

	rolled, err = c.Check(ctx)
	require.NoError(t, err)
	assert.False(t, rolled)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	rolled, err = c.Check(ctx)
	require.NoError(t, err)
	assert.True(t, rolled)

	ev := rec.last()
	assert.Equal(t, events.MonthRollover, ev.Kind)
	assert.Equal(t, []core.Month{core.NewMonth(2025, 1), core.NewMonth(2025, 2)}, ev.Months)
}

func TestRolloverCheckerLifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewRolloverChecker(nil, 5*time.Millisecond)

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsRunning())
	assert.Error(t, c.Start(ctx), "second start must fail")

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, c.Stop(stopCtx))
	assert.False(t, c.IsRunning())
	assert.NoError(t, c.Stop(stopCtx))
}
