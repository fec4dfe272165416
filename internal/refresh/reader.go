package refresh

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetflow/internal/core"
	"budgetflow/internal/engine"
	"budgetflow/internal/ledger"
)

// Reader serves derived aggregates from Results. A miss is computed from the
// store once per key, however many callers ask concurrently, and stored in
// the namespace that owns it. The shared computation ignores the
// cancellation of whichever caller started it.
type Reader struct {
	store   ledger.Store
	results *Results
	now     func() time.Time
	group   singleflight.Group
}

func NewReader(store ledger.Store, results *Results, now func() time.Time) *Reader {
	if now == nil {
		now = time.Now
	}
	return &Reader{store: store, results: results, now: now}
}

func (r *Reader) CategorySummaries(ctx context.Context, m core.Month) ([]core.CategorySummary, error) {
	if s, ok := r.results.Summaries(m); ok {
		return s, nil
	}
	v, err, _ := r.group.Do("summaries:"+m.Key(), func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		snap, err := ledger.LoadSnapshot(ctx, r.store, m.Year)
		if err != nil {
			return nil, err
		}
		s := engine.Summarize(snap, m)
		r.results.setSummaries(m, s)
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("category summaries %s: %w", m, err)
	}
	return v.([]core.CategorySummary), nil
}

func (r *Reader) OverBudgetCategories(ctx context.Context, m core.Month) ([]core.CategorySummary, error) {
	s, err := r.CategorySummaries(ctx, m)
	if err != nil {
		return nil, err
	}
	return engine.OverBudget(s), nil
}

func (r *Reader) RemainingForMonth(ctx context.Context, category string, m core.Month) (core.Money, error) {
	s, err := r.CategorySummaries(ctx, m)
	if err != nil {
		return core.Money{}, err
	}
	return engine.RemainingFor(s, category), nil
}

// YearBalances returns the accumulated balances of every category for year.
func (r *Reader) YearBalances(ctx context.Context, year int) (YearBalances, error) {
	if yb, ok := r.results.Accumulated(year); ok {
		return yb, nil
	}
	v, err, _ := r.group.Do("accumulated:"+strconv.Itoa(year), func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		snap, err := ledger.LoadSnapshot(ctx, r.store, year)
		if err != nil {
			return nil, err
		}
		yb := accumulateYear(snap, r.now())
		r.results.setAccumulated(yb)
		return yb, nil
	})
	if err != nil {
		return YearBalances{}, fmt.Errorf("accumulated balances %d: %w", year, err)
	}
	return v.(YearBalances), nil
}

func (r *Reader) AccumulatedBalance(ctx context.Context, category string, year int) (core.Money, error) {
	yb, err := r.YearBalances(ctx, year)
	if err != nil {
		return core.Money{}, err
	}
	return engine.AccumulatedFor(yb.Balances, category), nil
}

func (r *Reader) TotalAccumulatedBalance(ctx context.Context, year int) (core.Money, error) {
	yb, err := r.YearBalances(ctx, year)
	if err != nil {
		return core.Money{}, err
	}
	return yb.Total, nil
}

func (r *Reader) UnassignedCreditsTotal(ctx context.Context) (core.Money, error) {
	if m, ok := r.results.Unassigned(); ok {
		return m, nil
	}
	v, err, _ := r.group.Do("unassigned", func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		pool, err := r.store.ListPool(ctx)
		if err != nil {
			return nil, err
		}
		total := engine.PoolTotal(pool)
		r.results.setUnassigned(total)
		return total, nil
	})
	if err != nil {
		return core.Money{}, fmt.Errorf("unassigned total: %w", err)
	}
	return v.(core.Money), nil
}

// BankBalance is the current year's accumulated total plus the unassigned
// pool plus the initial balance.
func (r *Reader) BankBalance(ctx context.Context) (core.Money, error) {
	if m, ok := r.results.BankBalance(); ok {
		return m, nil
	}
	v, err, _ := r.group.Do("bank", func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		acc, err := r.TotalAccumulatedBalance(ctx, r.now().Year())
		if err != nil {
			return nil, err
		}
		pool, err := r.UnassignedCreditsTotal(ctx)
		if err != nil {
			return nil, err
		}
		initial, err := r.store.InitialBalance(ctx)
		if err != nil {
			return nil, err
		}
		bank := engine.ComposeBankBalance(acc, pool, initial)
		r.results.setBankBalance(bank)
		return bank, nil
	})
	if err != nil {
		return core.Money{}, fmt.Errorf("bank balance: %w", err)
	}
	return v.(core.Money), nil
}

// OutstandingDebt lists unpaid credit card charges per category.
func (r *Reader) OutstandingDebt(ctx context.Context) ([]core.CategoryAmount, error) {
	if d, ok := r.results.Debt(); ok {
		return d, nil
	}
	v, err, _ := r.group.Do("debt", func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		d, err := pipeline{store: r.store}.debt(ctx)
		if err != nil {
			return nil, err
		}
		r.results.setDebt(d)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.CategoryAmount), nil
}
