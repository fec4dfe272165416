package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetflow/internal/core"
	"budgetflow/internal/events"
)

// RolloverChecker announces calendar month changes so the accumulation
// window advances without a ledger mutation.
type RolloverChecker struct {
	publisher events.Publisher
	interval  time.Duration
	now       func() time.Time

	seenMu sync.Mutex
	seen   core.Month

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRolloverChecker(publisher events.Publisher, interval time.Duration) *RolloverChecker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RolloverChecker{
		publisher: publisher,
		interval:  interval,
		now:       time.Now,
	}
}

// Check publishes MonthRollover when the month differs from the one seen on
// the previous check. The first check only records the month.
func (c *RolloverChecker) Check(ctx context.Context) (bool, error) {
	current := core.MonthOf(c.now())

	c.seenMu.Lock()
	prev := c.seen
	c.seen = current
	c.seenMu.Unlock()

	if prev == (core.Month{}) || prev == current {
		return false, nil
	}
	slog.InfoContext(ctx, "Calendar month rolled over",
		"from", prev.Key(),
		"to", current.Key())
	if c.publisher == nil {
		return true, nil
	}
	if err := c.publisher.Publish(ctx, events.New(events.MonthRollover, current.Key(), prev, current)); err != nil {
		return true, fmt.Errorf("publish rollover: %w", err)
	}
	return true, nil
}

// Start begins the check loop. Returns an error if already running.
func (c *RolloverChecker) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("rollover checker is already running")
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	if _, err := c.Check(ctx); err != nil {
		slog.WarnContext(ctx, "Initial rollover check failed", "error", err)
	}
	go c.runLoop(ctx)

	slog.InfoContext(ctx, "Rollover checker started", "interval", c.interval)
	return nil
}

// Stop halts the loop and waits for it to exit or ctx to end.
func (c *RolloverChecker) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	stopCh, doneCh := c.stopCh, c.doneCh
	c.running = false
	c.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Rollover checker stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Rollover checker stop timed out")
		return ctx.Err()
	}
}

func (c *RolloverChecker) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *RolloverChecker) runLoop(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			if _, err := c.Check(ctx); err != nil {
				slog.ErrorContext(ctx, "Rollover check failed", "error", err)
			}
		}
	}
}
