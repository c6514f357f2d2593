// Package metrics exposes solver and simulation counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. It implements the optimizer,
// simulator and prediction observers.
type Metrics struct {
	registry *prometheus.Registry

	OptimizerRuns          *prometheus.CounterVec
	OptimizerFallbacks     *prometheus.CounterVec
	OptimizerDuration      prometheus.Histogram
	SimulationTrials       prometheus.Counter
	SimulationDuration     prometheus.Histogram
	PredictionPlaceholders prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, with the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		OptimizerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditrisk_optimizer_runs_total",
			Help: "Portfolio optimizations by the solver that produced the selection.",
		}, []string{"solver"}),

		OptimizerFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditrisk_optimizer_fallbacks_total",
			Help: "Greedy fallbacks by reason.",
		}, []string{"reason"}),

		OptimizerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditrisk_optimizer_duration_seconds",
			Help:    "Portfolio optimization latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),

		SimulationTrials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creditrisk_simulation_trials_total",
			Help: "Monte Carlo trials simulated.",
		}),

		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditrisk_simulation_duration_seconds",
			Help:    "Default simulation latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),

		PredictionPlaceholders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creditrisk_prediction_placeholders_total",
			Help: "Predictions answered with the placeholder probability.",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditrisk_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creditrisk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.OptimizerRuns,
		m.OptimizerFallbacks,
		m.OptimizerDuration,
		m.SimulationTrials,
		m.SimulationDuration,
		m.PredictionPlaceholders,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOptimization records one optimization.
func (m *Metrics) ObserveOptimization(solver, fallbackReason string, duration time.Duration) {
	m.OptimizerRuns.WithLabelValues(solver).Inc()
	if fallbackReason != "" {
		m.OptimizerFallbacks.WithLabelValues(fallbackReason).Inc()
	}
	m.OptimizerDuration.Observe(duration.Seconds())
}

// ObserveSimulation records one simulation run.
func (m *Metrics) ObserveSimulation(trials int, duration time.Duration) {
	m.SimulationTrials.Add(float64(trials))
	m.SimulationDuration.Observe(duration.Seconds())
}

// ObservePlaceholder records a placeholder prediction.
func (m *Metrics) ObservePlaceholder() {
	m.PredictionPlaceholders.Inc()
}

// ObserveHTTPRequest records one served request. Unmatched requests are
// grouped under the "unmatched" route to bound label cardinality.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}
