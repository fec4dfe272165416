package http

import (
	"strings"

	"budgetflow/internal/core"
	"budgetflow/internal/refresh"
)

// moneyJSON renders an amount both as exact cents and as a decimal string.
type moneyJSON struct {
	Cents  int64  `json:"cents"`
	Amount string `json:"amount"`
}

func toMoney(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Amount: m.String()}
}

type summaryJSON struct {
	Category  string    `json:"category"`
	Month     string    `json:"month"`
	Declared  moneyJSON `json:"declared"`
	Credited  moneyJSON `json:"credited"`
	Budget    moneyJSON `json:"budget"`
	Spent     moneyJSON `json:"spent"`
	Remaining moneyJSON `json:"remaining"`
}

func toSummaries(in []core.CategorySummary) []summaryJSON {
	out := make([]summaryJSON, 0, len(in))
	for _, s := range in {
		out = append(out, summaryJSON{
			Category:  s.Category,
			Month:     s.Month.Key(),
			Declared:  toMoney(s.Declared),
			Credited:  toMoney(s.Credited),
			Budget:    toMoney(s.Budget),
			Spent:     toMoney(s.Spent),
			Remaining: toMoney(s.Remaining),
		})
	}
	return out
}

type monthBalanceJSON struct {
	Month       string    `json:"month"`
	Remaining   moneyJSON `json:"remaining"`
	Accumulated moneyJSON `json:"accumulated"`
}

type balanceJSON struct {
	Category string             `json:"category"`
	Total    moneyJSON          `json:"total"`
	Series   []monthBalanceJSON `json:"series"`
}

type yearBalancesJSON struct {
	Year     int           `json:"year"`
	Window   []string      `json:"window"`
	Balances []balanceJSON `json:"balances"`
	Total    moneyJSON     `json:"total"`
}

func toYearBalances(yb refresh.YearBalances) yearBalancesJSON {
	out := yearBalancesJSON{
		Year:     yb.Year,
		Window:   make([]string, 0, len(yb.Window)),
		Balances: make([]balanceJSON, 0, len(yb.Balances)),
		Total:    toMoney(yb.Total),
	}
	for _, m := range yb.Window {
		out.Window = append(out.Window, m.Key())
	}
	for _, b := range yb.Balances {
		series := make([]monthBalanceJSON, 0, len(b.Series))
		for _, mb := range b.Series {
			series = append(series, monthBalanceJSON{
				Month:       mb.Month.Key(),
				Remaining:   toMoney(mb.Remaining),
				Accumulated: toMoney(mb.Accumulated),
			})
		}
		out.Balances = append(out.Balances, balanceJSON{Category: b.Category, Total: toMoney(b.Total), Series: series})
	}
	return out
}

type categoryAmountJSON struct {
	Category string    `json:"category"`
	Amount   moneyJSON `json:"amount"`
}

func toCategoryAmounts(in []core.CategoryAmount) ([]categoryAmountJSON, core.Money) {
	out := make([]categoryAmountJSON, 0, len(in))
	var total core.Money
	for _, a := range in {
		out = append(out, categoryAmountJSON{Category: a.Name, Amount: toMoney(a.Amount)})
		total = total.Add(a.Amount)
	}
	return out, total
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
