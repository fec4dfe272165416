package refresh

import (
	"sync"
	"time"

	"budgetflow/internal/cache"
	"budgetflow/internal/core"
)

const defaultSummaryCacheSize = 36

// YearBalances is the carry-forward position of every category for one year.
type YearBalances struct {
	Year       int
	Window     []core.Month
	Balances   []core.AccumulatedBalance
	Total      core.Money
	ComputedAt time.Time
}

// Results holds the four derived namespaces: category summaries, accumulated
// balances, the unassigned total and the bank balance. Each is written by one
// pipeline stage only. Readers never see an error from a stale value.
type Results struct {
	summaries *cache.LRUCache[core.Month, []core.CategorySummary]

	mu          sync.RWMutex
	accumulated map[int]YearBalances
	unassigned  *core.Money
	bank        *core.Money
	debt        []core.CategoryAmount
	hasDebt     bool
	updatedAt   time.Time
}

func NewResults(summaryCacheSize int) *Results {
	if summaryCacheSize <= 0 {
		summaryCacheSize = defaultSummaryCacheSize
	}
	return &Results{
		summaries:   cache.NewLRUCache[core.Month, []core.CategorySummary](summaryCacheSize, 0),
		accumulated: make(map[int]YearBalances),
	}
}

// SummaryCache exposes the summary namespace so it can be registered with a
// cache.Manager.
func (r *Results) SummaryCache() *cache.LRUCache[core.Month, []core.CategorySummary] {
	return r.summaries
}

func (r *Results) Summaries(m core.Month) ([]core.CategorySummary, bool) {
	return r.summaries.Get(m)
}

func (r *Results) setSummaries(m core.Month, s []core.CategorySummary) {
	r.summaries.Set(m, s)
}

func (r *Results) Accumulated(year int) (YearBalances, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	yb, ok := r.accumulated[year]
	return yb, ok
}

func (r *Results) setAccumulated(yb YearBalances) {
	r.mu.Lock()
	r.accumulated[yb.Year] = yb
	r.mu.Unlock()
}

func (r *Results) Unassigned() (core.Money, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.unassigned == nil {
		return core.Money{}, false
	}
	return *r.unassigned, true
}

func (r *Results) setUnassigned(m core.Money) {
	r.mu.Lock()
	r.unassigned = &m
	r.mu.Unlock()
}

func (r *Results) BankBalance() (core.Money, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.bank == nil {
		return core.Money{}, false
	}
	return *r.bank, true
}

func (r *Results) setBankBalance(m core.Money) {
	r.mu.Lock()
	r.bank = &m
	r.mu.Unlock()
}

func (r *Results) Debt() ([]core.CategoryAmount, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.debt, r.hasDebt
}

func (r *Results) setDebt(d []core.CategoryAmount) {
	r.mu.Lock()
	r.debt = d
	r.hasDebt = true
	r.mu.Unlock()
}

// UpdatedAt is when a pipeline run last committed.
func (r *Results) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}

// commit publishes a successful run stage by stage, in pipeline order.
func (r *Results) commit(o output) {
	if o.purge {
		r.summaries.Purge()
	}
	for m, s := range o.summaries {
		r.setSummaries(m, s)
	}

	r.mu.Lock()
	for _, y := range o.staleYears {
		delete(r.accumulated, y)
	}
	r.accumulated[o.accumulated.Year] = o.accumulated
	r.unassigned = &o.unassigned
	r.bank = &o.bank
	r.debt = o.debt
	r.hasDebt = true
	r.updatedAt = o.accumulated.ComputedAt
	r.mu.Unlock()
}
