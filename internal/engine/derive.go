package engine

import (
	"time"

	"budgetflow/internal/core"
	"budgetflow/internal/ledger"
)

// Aggregates is everything derived from one year's snapshot.
type Aggregates struct {
	Year             int
	Window           []core.Month
	Summaries        map[core.Month][]core.CategorySummary
	Accumulated      []core.AccumulatedBalance
	TotalAccumulated core.Money
	UnassignedTotal  core.Money
	InitialBalance   core.Money
	BankBalance      core.Money
	OutstandingDebt  []core.CategoryAmount
}

// Derive runs the four calculations in order over snap. Summaries are computed
// for every month of the snapshot year.
func Derive(snap ledger.Snapshot, now time.Time) Aggregates {
	agg := Aggregates{
		Year:           snap.Year,
		Summaries:      make(map[core.Month][]core.CategorySummary, 12),
		InitialBalance: snap.InitialBalance,
	}
	for _, m := range core.MonthsOfYear(snap.Year) {
		agg.Summaries[m] = Summarize(snap, m)
	}
	agg.Window = AccumulationWindow(snap.Year, now, snap.SalaryMonths)
	agg.Accumulated = Accumulate(agg.Summaries, agg.Window)
	agg.TotalAccumulated = TotalAccumulated(agg.Accumulated)
	agg.UnassignedTotal = PoolTotal(snap.Pool)
	agg.BankBalance = ComposeBankBalance(agg.TotalAccumulated, agg.UnassignedTotal, agg.InitialBalance)
	agg.OutstandingDebt = OutstandingDebt(snap.CardCharges)
	return agg
}
