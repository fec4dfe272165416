// Package refresh keeps the derived budget aggregates current. A Coordinator
// turns ledger events into pipeline runs; a Reader serves the results.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetflow/internal/core"
	"budgetflow/internal/events"
	"budgetflow/internal/ledger"
)

var (
	ErrRunInProgress = errors.New("refresh already running")
	ErrStopped       = errors.New("refresh coordinator stopped")
)

// State is the coordinator lifecycle state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RerunPolicy decides what happens to a request that arrives mid-run.
type RerunPolicy string

const (
	// RerunQueue remembers the request and runs once more when the current
	// run finishes.
	RerunQueue RerunPolicy = "queue"
	// RerunDrop discards it.
	RerunDrop RerunPolicy = "drop"
)

func ParseRerunPolicy(s string) (RerunPolicy, error) {
	switch RerunPolicy(s) {
	case "", RerunQueue:
		return RerunQueue, nil
	case RerunDrop:
		return RerunDrop, nil
	default:
		return "", fmt.Errorf("unknown rerun policy %q", s)
	}
}

// Config holds coordinator timing and policy settings.
type Config struct {
	Debounce         time.Duration
	MinInterval      time.Duration
	Rerun            RerunPolicy
	SummaryCacheSize int

	// Now is the ledger clock: it picks the current month and year. Debounce
	// and throttle always use wall time.
	Now func() time.Time
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		Debounce:         200 * time.Millisecond,
		MinInterval:      500 * time.Millisecond,
		Rerun:            RerunQueue,
		SummaryCacheSize: defaultSummaryCacheSize,
		Now:              time.Now,
	}
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State         State     `json:"-"`
	StateName     string    `json:"state"`
	LastRunAt     time.Time `json:"last_run_at"`
	LastSuccessAt time.Time `json:"last_success_at"`
	PendingRerun  bool      `json:"pending_rerun"`
	Runs          int       `json:"runs"`
	LastError     string    `json:"last_error,omitempty"`
}

type Coordinator struct {
	store   ledger.Store
	results *Results
	pipe    pipeline
	cfg     Config

	mu            sync.Mutex
	state         State
	pending       request
	hasPending    bool
	timer         *time.Timer
	timerGen      uint64
	rerun         bool
	rerunReq      request
	lastRunAt     time.Time
	lastSuccessAt time.Time
	runs          int
	lastErr       error
	closed        bool

	wg sync.WaitGroup
}

func NewCoordinator(store ledger.Store, results *Results, cfg Config) *Coordinator {
	def := DefaultConfig()
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	if cfg.Rerun == "" {
		cfg.Rerun = def.Rerun
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if results == nil {
		results = NewResults(cfg.SummaryCacheSize)
	}
	return &Coordinator{
		store:   store,
		results: results,
		pipe:    pipeline{store: store},
		cfg:     cfg,
	}
}

func (c *Coordinator) Results() *Results {
	return c.results
}

// Run subscribes to sub and turns every event into a refresh request until
// ctx ends. It waits for an in-flight run before returning.
func (c *Coordinator) Run(ctx context.Context, sub events.Subscriber) error {
	slog.InfoContext(ctx, "Refresh coordinator started",
		"debounce", c.cfg.Debounce,
		"min_interval", c.cfg.MinInterval,
		"rerun_policy", c.cfg.Rerun)

	for ev := range sub.Subscribe(ctx) {
		c.Request(ev)
	}

	c.close()
	slog.InfoContext(ctx, "Refresh coordinator stopped")
	return nil
}

func (c *Coordinator) close() {
	c.mu.Lock()
	c.closed = true
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// Request records the months touched by ev and restarts the debounce timer.
// Events without months (category deleted, initial balance set) refresh the
// current month; a deleted category also purges the summary cache.
func (c *Coordinator) Request(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	purge := ev.Kind == events.CategoryDeleted
	c.pending.add(ev.Months, ev.Force, purge)
	c.hasPending = true

	if c.timer != nil {
		c.timer.Stop()
	}
	c.scheduleLocked(c.cfg.Debounce)
}

// scheduleLocked arms the timer for d. A timer that already fired but is
// still waiting on the lock sees a newer generation and does nothing.
func (c *Coordinator) scheduleLocked(d time.Duration) {
	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(d, func() { c.fire(gen) })
}

// fire runs when the debounce window closes. It delays to the trailing edge
// of the throttle window when the last run started too recently.
func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.hasPending || gen != c.timerGen {
		return
	}

	if !c.lastRunAt.IsZero() {
		if wait := time.Until(c.lastRunAt.Add(c.cfg.MinInterval)); wait > 0 {
			c.scheduleLocked(wait)
			return
		}
	}

	req := c.pending
	c.pending = request{}
	c.hasPending = false
	c.timer = nil

	if c.state == Running {
		c.deferLocked(req)
		return
	}
	c.beginLocked()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.execute(req)
	}()
}

// deferLocked applies the rerun policy to a request that arrived mid-run.
func (c *Coordinator) deferLocked(req request) {
	if c.cfg.Rerun == RerunDrop {
		slog.Warn("Refresh already running, dropping request", "months", len(req.months))
		return
	}
	c.rerunReq.merge(req)
	c.rerun = true
}

func (c *Coordinator) beginLocked() {
	c.state = Running
	c.lastRunAt = time.Now()
	c.runs++
}

// RunNow refreshes the whole current year synchronously, skipping debounce
// and throttle. A run already in flight is honoured: under the drop policy
// RunNow returns ErrRunInProgress, under queue it schedules a rerun and
// returns nil.
func (c *Coordinator) RunNow(ctx context.Context, force bool) error {
	var req request
	req.add(core.MonthsOfYear(c.cfg.Now().Year()), force, true)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.state == Running {
		defer c.mu.Unlock()
		if c.cfg.Rerun == RerunDrop {
			return ErrRunInProgress
		}
		c.deferLocked(req)
		return nil
	}
	c.beginLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	defer c.wg.Done()
	return c.execute(req)
}

// execute runs req, then any reruns queued meanwhile, and returns the
// coordinator to Idle. It returns the error of the first run.
func (c *Coordinator) execute(req request) error {
	var first error
	for i := 0; ; i++ {
		err := c.runOnce(req)
		if i == 0 {
			first = err
		}

		c.mu.Lock()
		c.lastErr = err
		if err == nil {
			c.lastSuccessAt = time.Now()
		}
		if !c.rerun {
			c.state = Idle
			c.mu.Unlock()
			return first
		}
		req = c.rerunReq
		c.rerunReq = request{}
		c.rerun = false
		c.lastRunAt = time.Now()
		c.runs++
		c.mu.Unlock()
	}
}

func (c *Coordinator) runOnce(req request) error {
	// Runs are never cancelled once started.
	ctx := context.Background()
	start := time.Now()

	out, err := c.pipe.run(ctx, req, c.cfg.Now())
	if err != nil {
		slog.ErrorContext(ctx, "Refresh failed, keeping previous results",
			"error", err,
			"months", len(req.months),
			"force", req.force)
		return err
	}
	c.results.commit(out)

	slog.DebugContext(ctx, "Refresh complete",
		"months", len(out.summaries),
		"force", req.force,
		"duration", time.Since(start))
	return nil
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:         c.state,
		StateName:     c.state.String(),
		LastRunAt:     c.lastRunAt,
		LastSuccessAt: c.lastSuccessAt,
		PendingRerun:  c.rerun,
		Runs:          c.runs,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}
