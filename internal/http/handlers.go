package http

import (
	"errors"
	"net/http"

	"budgetflow/internal/log"
	"budgetflow/internal/refresh"
)

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	m, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	summaries, err := s.agg.CategorySummaries(r.Context(), m)
	if err != nil {
		s.internalError(w, r, "Failed to load category summaries", err, log.OpSummarize)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"month":     m.Key(),
		"summaries": toSummaries(summaries),
	}).Write(w)
}

func (s *Server) handleOverBudget(w http.ResponseWriter, r *http.Request) {
	m, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	over, err := s.agg.OverBudgetCategories(r.Context(), m)
	if err != nil {
		s.internalError(w, r, "Failed to load over-budget categories", err, log.OpSummarize)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"month":      m.Key(),
		"categories": toSummaries(over),
	}).Write(w)
}

func (s *Server) handleAccumulated(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := ParseYearParam(q, s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	if category := ParseCategoryParam(q); category != "" {
		bal, err := s.agg.AccumulatedBalance(r.Context(), category, year)
		if err != nil {
			s.internalError(w, r, "Failed to load accumulated balance", err, log.OpAccumulate)
			return
		}
		NewJSONResponse().Data(map[string]any{
			"year":     year,
			"category": category,
			"balance":  toMoney(bal),
		}).Write(w)
		return
	}

	yb, err := s.agg.YearBalances(r.Context(), year)
	if err != nil {
		s.internalError(w, r, "Failed to load accumulated balances", err, log.OpAccumulate)
		return
	}
	NewJSONResponse().Data(toYearBalances(yb)).Write(w)
}

func (s *Server) handleAccumulatedTotal(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYearParam(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	total, err := s.agg.TotalAccumulatedBalance(r.Context(), year)
	if err != nil {
		s.internalError(w, r, "Failed to load accumulated total", err, log.OpAccumulate)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"year":  year,
		"total": toMoney(total),
	}).Write(w)
}

func (s *Server) handleRemaining(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := ParseCategoryParam(q)
	if category == "" {
		BadRequestError("category is required").Write(w)
		return
	}
	m, err := ParseMonthParams(q, s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	remaining, err := s.agg.RemainingForMonth(r.Context(), category, m)
	if err != nil {
		s.internalError(w, r, "Failed to load remaining budget", err, log.OpSummarize)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"month":     m.Key(),
		"category":  category,
		"remaining": toMoney(remaining),
	}).Write(w)
}

func (s *Server) handleUnassignedTotal(w http.ResponseWriter, r *http.Request) {
	total, err := s.agg.UnassignedCreditsTotal(r.Context())
	if err != nil {
		s.internalError(w, r, "Failed to load unassigned credits", err, log.OpReconcile)
		return
	}
	NewJSONResponse().Data(map[string]any{"total": toMoney(total)}).Write(w)
}

func (s *Server) handleBankBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.agg.BankBalance(r.Context())
	if err != nil {
		s.internalError(w, r, "Failed to compose bank balance", err, log.OpBankBalance)
		return
	}
	NewJSONResponse().Data(map[string]any{"balance": toMoney(balance)}).Write(w)
}

func (s *Server) handleDebt(w http.ResponseWriter, r *http.Request) {
	debt, err := s.agg.OutstandingDebt(r.Context())
	if err != nil {
		s.internalError(w, r, "Failed to load outstanding debt", err, log.OpBankBalance)
		return
	}
	items, total := toCategoryAmounts(debt)
	NewJSONResponse().Data(map[string]any{
		"categories": items,
		"total":      toMoney(total),
	}).Write(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.refresher.Status()).Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	force := ParseBoolParam(r.URL.Query(), "force")
	logger := log.FromContext(r.Context())

	err := s.refresher.RunNow(r.Context(), force)
	switch {
	case err == nil:
		logger.InfoContext(r.Context(), "Manual refresh complete", log.FieldForce, force)
		NewJSONResponse().Data(s.refresher.Status()).Write(w)
	case errors.Is(err, refresh.ErrRunInProgress):
		ConflictError("refresh already in progress").Write(w)
	case errors.Is(err, refresh.ErrStopped):
		ServiceUnavailableError("refresh coordinator stopped").Write(w)
	default:
		s.internalError(w, r, "Manual refresh failed", err, log.OpRefresh)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), msg, err, op, nil)
	InternalServerError(msg).Write(w)
}

var _ Aggregates = (*refresh.Reader)(nil)
