// Package observability provides Prometheus metrics for the dashboard core.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Balance metrics
	AdapterCalls        *prometheus.CounterVec
	AdapterLatency      *prometheus.HistogramVec
	CacheLookups        *prometheus.CounterVec
	AggregationDuration prometheus.Histogram
	BalancesReturned    prometheus.Gauge
	SnapshotFailures    *prometheus.CounterVec

	// Catalog metrics
	CatalogAttempts *prometheus.CounterVec

	// Swap metrics
	SwapTransitions *prometheus.CounterVec
	StatusPolls     *prometheus.CounterVec

	// Live feed
	FeedClients prometheus.Gauge
}

// NewMetrics creates a Metrics instance on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dashboard"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		AdapterCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "adapter_calls_total",
			Help:      "Provider adapter calls by adapter, chain and outcome",
		}, []string{"adapter", "chain", "outcome"}),
		AdapterLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "adapter_latency_seconds",
			Help:      "Upstream latency of provider adapters",
			Buckets:   prometheus.DefBuckets,
		}, []string{"adapter"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "TTL cache lookups by cache and result",
		}, []string{"cache", "result"}),
		AggregationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of a full balance aggregation pass",
			Buckets:   prometheus.DefBuckets,
		}),
		BalancesReturned: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "last_result_size",
			Help:      "Number of balances in the last published aggregation",
		}),
		SnapshotFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "failures_total",
			Help:      "Swallowed durable snapshot failures by operation",
		}, []string{"op"}),
		CatalogAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "attempts_total",
			Help:      "Catalog load attempts by operation and outcome",
		}, []string{"op", "outcome"}),
		SwapTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "transitions_total",
			Help:      "Swap session transitions by target state",
		}, []string{"state"}),
		StatusPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "status_polls_total",
			Help:      "Swap status polls by outcome",
		}, []string{"outcome"}),
		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Connected websocket clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// RecordAdapterCall records one provider adapter call.
func (m *Metrics) RecordAdapterCall(adapter, chain string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AdapterCalls.WithLabelValues(adapter, chain, outcome(ok)).Inc()
	m.AdapterLatency.WithLabelValues(adapter).Observe(elapsed.Seconds())
}

// RecordCacheLookup records a hit or miss for the named cache.
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordAggregation records one published aggregation.
func (m *Metrics) RecordAggregation(elapsed time.Duration, n int) {
	if m == nil {
		return
	}
	m.AggregationDuration.Observe(elapsed.Seconds())
	m.BalancesReturned.Set(float64(n))
}

// RecordSnapshotFailure records a swallowed durable store error.
func (m *Metrics) RecordSnapshotFailure(op string) {
	if m == nil {
		return
	}
	m.SnapshotFailures.WithLabelValues(op).Inc()
}

// RecordCatalogAttempt records one catalog attempt.
func (m *Metrics) RecordCatalogAttempt(op string, ok bool) {
	if m == nil {
		return
	}
	m.CatalogAttempts.WithLabelValues(op, outcome(ok)).Inc()
}

// RecordSwapTransition records a session entering state.
func (m *Metrics) RecordSwapTransition(state string) {
	if m == nil {
		return
	}
	m.SwapTransitions.WithLabelValues(state).Inc()
}

// RecordStatusPoll records one status poll.
func (m *Metrics) RecordStatusPoll(ok bool) {
	if m == nil {
		return
	}
	m.StatusPolls.WithLabelValues(outcome(ok)).Inc()
}

// SetFeedClients updates the connected websocket client gauge.
func (m *Metrics) SetFeedClients(n int) {
	if m == nil {
		return
	}
	m.FeedClients.Set(float64(n))
}
