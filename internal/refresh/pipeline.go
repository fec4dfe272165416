package refresh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetflow/internal/core"
	"budgetflow/internal/engine"
	"budgetflow/internal/ledger"
)

// request is the merged work of one or more events.
type request struct {
	months map[core.Month]struct{}
	force  bool
	purge  bool
}

func (r *request) add(months []core.Month, force, purge bool) {
	if r.months == nil {
		r.months = make(map[core.Month]struct{}, len(months))
	}
	for _, m := range months {
		r.months[m] = struct{}{}
	}
	r.force = r.force || force
	r.purge = r.purge || purge
}

func (r *request) merge(o request) {
	for m := range o.months {
		r.add([]core.Month{m}, false, false)
	}
	r.force = r.force || o.force
	r.purge = r.purge || o.purge
}

func (r request) sortedMonths() []core.Month {
	out := make([]core.Month, 0, len(r.months))
	for m := range r.months {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// output is what a successful run commits to Results.
type output struct {
	summaries   map[core.Month][]core.CategorySummary
	purge       bool
	staleYears  []int
	accumulated YearBalances
	unassigned  core.Money
	bank        core.Money
	debt        []core.CategoryAmount
}

// pipeline runs the four stages against a store. It never touches Results;
// the caller commits the output once every stage succeeded.
type pipeline struct {
	store ledger.Store
}

func (p pipeline) run(ctx context.Context, req request, now time.Time) (output, error) {
	year := now.Year()
	current := core.MonthOf(now)
	months := req.sortedMonths()
	if _, ok := req.months[current]; !ok {
		months = append(months, current)
	}

	snaps, err := p.snapshots(ctx, year, months)
	if err != nil {
		return output{}, err
	}
	snap := snaps[year]

	out := output{purge: req.purge}

	// Stage 1: category summaries for the affected months.
	out.summaries, err = summarizeMonths(ctx, snaps, months)
	if err != nil {
		return output{}, fmt.Errorf("summaries: %w", err)
	}
	for y := range snaps {
		if y != year {
			out.staleYears = append(out.staleYears, y)
		}
	}

	// Stage 2: accumulated balances for the current year.
	out.accumulated = accumulateYear(snap, now)

	// Stage 3: unassigned pool.
	pool := snap.Pool
	if req.force {
		if pool, err = p.rebuildPool(ctx); err != nil {
			return output{}, fmt.Errorf("rebuild pool: %w", err)
		}
	}
	out.unassigned = engine.PoolTotal(pool)

	// Stage 4: bank balance.
	out.bank = engine.ComposeBankBalance(out.accumulated.Total, out.unassigned, snap.InitialBalance)
	out.debt, err = p.debt(ctx)
	if err != nil {
		return output{}, err
	}
	return out, nil
}

// snapshots loads the year of now plus every other year an affected month
// falls in.
func (p pipeline) snapshots(ctx context.Context, year int, months []core.Month) (map[int]ledger.Snapshot, error) {
	years := map[int]struct{}{year: {}}
	for _, m := range months {
		years[m.Year] = struct{}{}
	}

	var (
		mu    sync.Mutex
		snaps = make(map[int]ledger.Snapshot, len(years))
	)
	g, gctx := errgroup.WithContext(ctx)
	for y := range years {
		g.Go(func() error {
			snap, err := ledger.LoadSnapshot(gctx, p.store, y)
			if err != nil {
				return fmt.Errorf("load snapshot %d: %w", y, err)
			}
			mu.Lock()
			snaps[y] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

func summarizeMonths(ctx context.Context, snaps map[int]ledger.Snapshot, months []core.Month) (map[core.Month][]core.CategorySummary, error) {
	var (
		mu  sync.Mutex
		out = make(map[core.Month][]core.CategorySummary, len(months))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range months {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s := engine.Summarize(snaps[m.Year], m)
			mu.Lock()
			out[m] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func accumulateYear(snap ledger.Snapshot, now time.Time) YearBalances {
	window := engine.AccumulationWindow(snap.Year, now, snap.SalaryMonths)
	summaries := make(map[core.Month][]core.CategorySummary, len(window))
	for _, m := range window {
		summaries[m] = engine.Summarize(snap, m)
	}
	balances := engine.Accumulate(summaries, window)
	return YearBalances{
		Year:       snap.Year,
		Window:     window,
		Balances:   balances,
		Total:      engine.TotalAccumulated(balances),
		ComputedAt: now,
	}
}

// rebuildPool recomputes the pool from raw credits and replaces the stored
// pool with the result.
func (p pipeline) rebuildPool(ctx context.Context) ([]core.UnassignedCredit, error) {
	credits, err := p.store.ListAllCredits(ctx)
	if err != nil {
		return nil, err
	}
	entries := engine.RebuildPool(credits)
	if err := p.store.ReplacePool(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p pipeline) debt(ctx context.Context) ([]core.CategoryAmount, error) {
	charges, err := p.store.ListCreditCardExpenses(ctx, ledger.Filter{}, true)
	if err != nil {
		return nil, fmt.Errorf("load outstanding card charges: %w", err)
	}
	return engine.OutstandingDebt(charges), nil
}
