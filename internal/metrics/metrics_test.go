package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/creditrisk/internal/modules/optimization"
	"github.com/aristath/creditrisk/internal/modules/prediction"
	"github.com/aristath/creditrisk/internal/modules/simulation"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Metrics must satisfy every observer it is wired to.
var (
	_ optimization.Observer = (*Metrics)(nil)
	_ simulation.Observer   = (*Metrics)(nil)
	_ prediction.Observer   = (*Metrics)(nil)
)

func TestObserveOptimization(t *testing.T) {
	m := New()

	m.ObserveOptimization("qaoa", "", 20*time.Millisecond)
	m.ObserveOptimization(optimization.SolverGreedy, optimization.FallbackTimeout, time.Second)
	m.ObserveOptimization(optimization.SolverGreedy, optimization.FallbackUnavailable, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OptimizerRuns.WithLabelValues("qaoa")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OptimizerRuns.WithLabelValues(optimization.SolverGreedy)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OptimizerFallbacks.WithLabelValues(optimization.FallbackTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OptimizerFallbacks.WithLabelValues(optimization.FallbackUnavailable)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.OptimizerFallbacks))
}

func TestObserveSimulationAndPlaceholder(t *testing.T) {
	m := New()

	m.ObserveSimulation(1000, time.Millisecond)
	m.ObserveSimulation(500, time.Millisecond)
	m.ObservePlaceholder()

	assert.Equal(t, 1500.0, testutil.ToFloat64(m.SimulationTrials))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionPlaceholders))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveOptimization("qaoa", "", time.Millisecond)

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `creditrisk_optimizer_runs_total{solver="qaoa"} 1`)
	assert.Contains(t, string(body), "creditrisk_optimizer_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestObserveHTTPRequest(t *testing.T) {
	m := New()

	m.ObserveHTTPRequest("POST", "/api/optimize_portfolio", 200, 5*time.Millisecond)
	m.ObserveHTTPRequest("POST", "/api/optimize_portfolio", 400, time.Millisecond)
	m.ObserveHTTPRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/optimize_portfolio", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/optimize_portfolio", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPDuration))
}
