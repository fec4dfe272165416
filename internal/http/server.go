// Package http serves the derived budget aggregates as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetflow/internal/core"
	"budgetflow/internal/log"
	"budgetflow/internal/middleware/ratelimit"
	"budgetflow/internal/middleware/security"
	"budgetflow/internal/middleware/trace"
	"budgetflow/internal/refresh"
)

// Aggregates is the read side of the refresh pipeline.
type Aggregates interface {
	CategorySummaries(ctx context.Context, m core.Month) ([]core.CategorySummary, error)
	OverBudgetCategories(ctx context.Context, m core.Month) ([]core.CategorySummary, error)
	YearBalances(ctx context.Context, year int) (refresh.YearBalances, error)
	AccumulatedBalance(ctx context.Context, category string, year int) (core.Money, error)
	TotalAccumulatedBalance(ctx context.Context, year int) (core.Money, error)
	RemainingForMonth(ctx context.Context, category string, m core.Month) (core.Money, error)
	UnassignedCreditsTotal(ctx context.Context) (core.Money, error)
	BankBalance(ctx context.Context) (core.Money, error)
	OutstandingDebt(ctx context.Context) ([]core.CategoryAmount, error)
}

// Refresher triggers and reports pipeline runs.
type Refresher interface {
	RunNow(ctx context.Context, force bool) error
	Status() refresh.Status
}

// Pinger reports whether the ledger store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the API serves from.
type Deps struct {
	Aggregates Aggregates
	Refresher  Refresher
	// Ready is optional; /readyz always succeeds without it.
	Ready  Pinger
	Logger *log.Logger
	Now    func() time.Time
	// RefreshLimit caps manual refreshes per client per minute.
	RefreshLimit int
}

type Server struct {
	http.Server
	agg       Aggregates
	refresher Refresher
	ready     Pinger
	now       func() time.Time

	limiter      *ratelimit.Limiter
	trace        *trace.Middleware
	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	ips := security.NewIPExtractor()
	s := &Server{
		agg:       deps.Aggregates,
		refresher: deps.Refresher,
		ready:     deps.Ready,
		now:       deps.Now,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{Limit: deps.RefreshLimit, Window: time.Minute}),
		trace:     trace.NewMiddleware(deps.Logger, ips.ClientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/summaries", s.handleSummaries)
	mux.HandleFunc("GET /api/over-budget", s.handleOverBudget)
	mux.HandleFunc("GET /api/accumulated", s.handleAccumulated)
	mux.HandleFunc("GET /api/accumulated/total", s.handleAccumulatedTotal)
	mux.HandleFunc("GET /api/remaining", s.handleRemaining)
	mux.HandleFunc("GET /api/unassigned/total", s.handleUnassignedTotal)
	mux.HandleFunc("GET /api/bank-balance", s.handleBankBalance)
	mux.HandleFunc("GET /api/debt", s.handleDebt)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	limited := s.limiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError("too many refresh requests").Write(w)
	})
	mux.Handle("POST /api/refresh", limited(http.HandlerFunc(s.handleRefresh)))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           security.Headers(security.DefaultHeadersConfig())(s.trace.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// TraceMetrics exposes request counters.
func (s *Server) TraceMetrics() trace.Metrics {
	return s.trace.GetMetrics()
}

func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
