package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetflow/internal/core"
	"budgetflow/internal/ledger/memory"
	"budgetflow/internal/log"
	"budgetflow/internal/refresh"
)

var fixedNow = time.Date(2025, time.May, 20, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type stubRefresher struct {
	err   error
	calls []bool
}

func (s *stubRefresher) RunNow(_ context.Context, force bool) error {
	s.calls = append(s.calls, force)
	return s.err
}

func (s *stubRefresher) Status() refresh.Status {
	return refresh.Status{StateName: refresh.Idle.String(), Runs: len(s.calls)}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: log.DefaultConfig().Level, Format: log.FormatJSON, Output: &bytes.Buffer{}})
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Aggregates == nil {
		ctx := context.Background()
		store := memory.New()
		require.NoError(t, store.UpsertBudget(ctx, core.Budget{Category: "Food", Month: core.NewMonth(2025, 1), Amount: core.Cents(5000)}))
		require.NoError(t, store.UpsertBudget(ctx, core.Budget{Category: "Food", Month: core.NewMonth(2025, 5), Amount: core.Cents(10000)}))
		_, err := store.CreateExpense(ctx, core.Expense{Category: "Food", Amount: core.Cents(3000), Description: "groceries", Date: core.NewDate(2025, 5, 3)})
		require.NoError(t, err)
		_, err = store.CreateCreditCardExpense(ctx, core.CreditCardExpense{Category: "Travel", Amount: core.Cents(4200), Description: "train", Date: core.NewDate(2025, 5, 4)})
		require.NoError(t, err)
		require.NoError(t, store.SetInitialBalance(ctx, core.Cents(100000)))
		deps.Aggregates = refresh.NewReader(store, refresh.NewResults(0), clock)
	}
	if deps.Refresher == nil {
		deps.Refresher = &stubRefresher{}
	}
	if deps.Logger == nil {
		deps.Logger = quietLogger()
	}
	deps.Now = clock
	s := NewServer(":0", deps)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func get(t *testing.T, s *Server, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if w.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func cents(t *testing.T, v any) int64 {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "not a money object: %v", v)
	return int64(m["cents"].(float64))
}

func TestSummariesEndpoint(t *testing.T) {
	s := newTestServer(t, Deps{})

	w, body := get(t, s, "/api/summaries?month=2025-05")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-05", body["month"])

	summaries := body["summaries"].([]any)
	require.Len(t, summaries, 1)
	food := summaries[0].(map[string]any)
	assert.Equal(t, "Food", food["category"])
	assert.Equal(t, int64(7000), cents(t, food["remaining"]))
	assert.Equal(t, "70.00", food["remaining"].(map[string]any)["amount"])
}

func TestSummariesDefaultsToCurrentMonth(t *testing.T) {
	s := newTestServer(t, Deps{})

	_, body := get(t, s, "/api/summaries")
	assert.Equal(t, "2025-05", body["month"])
}

func TestBadQueryParameters(t *testing.T) {
	s := newTestServer(t, Deps{})

	for _, target := range []string{
		"/api/summaries?month=13",
		"/api/over-budget?year=abc",
		"/api/accumulated?year=x",
		"/api/accumulated/total?year=0",
		"/api/remaining?month=2025-05",
	} {
		w, body := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.NotEmpty(t, body["error"], target)
	}
}

func TestAccumulatedEndpoints(t *testing.T) {
	s := newTestServer(t, Deps{})

	_, body := get(t, s, "/api/accumulated?category=Food&year=2025")
	assert.Equal(t, int64(12000), cents(t, body["balance"]))

	_, body = get(t, s, "/api/accumulated/total")
	assert.Equal(t, int64(12000), cents(t, body["total"]))

	_, body = get(t, s, "/api/accumulated?year=2025")
	assert.Len(t, body["window"], 5)
	balances := body["balances"].([]any)
	require.Len(t, balances, 1)
	series := balances[0].(map[string]any)["series"].([]any)
	assert.Len(t, series, 5)
}

func TestRemainingAndBalances(t *testing.T) {
	s := newTestServer(t, Deps{})

	_, body := get(t, s, "/api/remaining?category=Food&year=2025&month=5")
	assert.Equal(t, int64(7000), cents(t, body["remaining"]))

	_, body = get(t, s, "/api/unassigned/total")
	assert.Equal(t, int64(0), cents(t, body["total"]))

	_, body = get(t, s, "/api/bank-balance")
	assert.Equal(t, int64(112000), cents(t, body["balance"]))

	_, body = get(t, s, "/api/debt")
	assert.Equal(t, int64(4200), cents(t, body["total"]))
	assert.Len(t, body["categories"], 1)
}

func TestOverBudgetEndpointEmpty(t *testing.T) {
	s := newTestServer(t, Deps{})

	w, body := get(t, s, "/api/over-budget?month=2025-05")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["categories"])
}

func TestRefreshEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   string
		wantCode int
		wantArg  bool
	}{
		{"success", nil, "/api/refresh", http.StatusOK, false},
		{"forced", nil, "/api/refresh?force=1", http.StatusOK, true},
		{"in progress", refresh.ErrRunInProgress, "/api/refresh", http.StatusConflict, false},
		{"stopped", refresh.ErrStopped, "/api/refresh", http.StatusServiceUnavailable, false},
		{"failed", errors.New("disk full"), "/api/refresh", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRefresher{err: tt.err}
			s := newTestServer(t, Deps{Refresher: r})

			w := httptest.NewRecorder()
			s.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tt.target, nil))

			assert.Equal(t, tt.wantCode, w.Code)
			require.Len(t, r.calls, 1)
			assert.Equal(t, tt.wantArg, r.calls[0])
		})
	}
}

func TestRefreshIsRateLimited(t *testing.T) {
	r := &stubRefresher{}
	s := newTestServer(t, Deps{Refresher: r, RefreshLimit: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		s.Handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Len(t, r.calls, 2)
}

func TestRefreshRejectsGet(t *testing.T) {
	s := newTestServer(t, Deps{})

	w, _ := get(t, s, "/api/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t, Deps{})

	w, body := get(t, s, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", body["state"])
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, Deps{Ready: stubPinger{}})
	w, _ := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = get(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)

	down := newTestServer(t, Deps{Ready: stubPinger{err: errors.New("closed")}})
	w, _ = get(t, down, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestResponsesCarrySecurityHeadersAndRequestID(t *testing.T) {
	s := newTestServer(t, Deps{})

	w, _ := get(t, s, "/api/status")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, int64(1), s.TraceMetrics().TotalRequests)
}

func TestShutdownIsIdempotent(t *testing.T) {
	s := newTestServer(t, Deps{})
	assert.NoError(t, s.Shutdown(context.Background()))
	assert.NoError(t, s.Shutdown(context.Background()))
}
