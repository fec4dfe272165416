package services

import (
	"context"
	"fmt"
	"log/slog"

	"budgetflow/internal/core"
	"budgetflow/internal/events"
	"budgetflow/internal/ledger"
)

// ReconcileSalaryMonths clears every salary flag whose month no longer holds
// a salary credit and returns the cleared months.
func (s *LedgerService) ReconcileSalaryMonths(ctx context.Context) ([]core.Month, error) {
	flagged, err := s.store.ListSalaryMonths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list salary months: %w", err)
	}

	var cleared []core.Month
	for _, m := range flagged {
		credits, err := s.store.ListCredits(ctx, ledger.Filter{
			Range:    ledger.MonthRange(m),
			Category: s.salaryCategory,
		})
		if err != nil {
			return cleared, fmt.Errorf("list salary credits for %s: %w", m, err)
		}
		if len(credits) > 0 {
			continue
		}
		if err := s.store.ClearSalaryMonth(ctx, m); err != nil {
			return cleared, fmt.Errorf("clear salary month %s: %w", m, err)
		}
		cleared = append(cleared, m)
	}
	return cleared, nil
}

// reconcileSalaryMonths runs the housekeeping after a credit mutation. Its
// failure is logged only; the next credit mutation retries it.
func (s *LedgerService) reconcileSalaryMonths(ctx context.Context) {
	cleared, err := s.ReconcileSalaryMonths(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Salary month housekeeping failed", "error", err)
	}
	for _, m := range cleared {
		slog.InfoContext(ctx, "Salary month flag cleared", "month", m.Key())
		s.publish(ctx, events.New(events.SalaryMonthCleared, m.Key(), m))
	}
}
