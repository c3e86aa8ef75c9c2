package telemetry

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace prefixes every metric exported by the service
const MetricsNamespace = "pallets"

// SweepObservation is what the metrics layer needs to know about a finished sweep
type SweepObservation struct {
	Duration time.Duration
	Partial  bool
	Failed   bool
	// Candidates counts processed candidates by detail status (AUTO_LINKED, NO_MATCH, ...)
	Candidates         map[string]int
	AutoLinked         int
	SuggestionsCreated int
}

// Metrics owns a private Prometheus registry and the ledger's collectors.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	sweepRuns          *prometheus.CounterVec
	sweepDuration      prometheus.Histogram
	sweepCandidates    *prometheus.CounterVec
	settlementsCreated *prometheus.CounterVec
	domainEvents       *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	slowQueries        *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Reconciliation sweeps by result (complete, partial, failed).",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Wall time of reconciliation sweeps.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		sweepCandidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "sweep",
			Name:      "candidates_total",
			Help:      "Inbound candidates processed by sweeps, by status.",
		}, []string{"status"}),
		settlementsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "sweep",
			Name:      "settlements_created_total",
			Help:      "Settlements written by sweeps, by kind.",
		}, []string{"kind"}),
		domainEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Domain events published after commit.",
		}, []string{"event_type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		slowQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "db",
			Name:      "slow_queries_total",
			Help:      "Queries slower than the configured threshold, by table.",
		}, []string{"table"}),
	}

	m.registry.MustRegister(
		m.sweepRuns,
		m.sweepDuration,
		m.sweepCandidates,
		m.settlementsCreated,
		m.domainEvents,
		m.httpRequests,
		m.httpDuration,
		m.slowQueries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterDBStats exports connection pool statistics of db
func (m *Metrics) RegisterDBStats(db *sql.DB) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, MetricsNamespace))
}

// ObserveSweep records one finished sweep
func (m *Metrics) ObserveSweep(obs SweepObservation) {
	result := "complete"
	switch {
	case obs.Failed:
		result = "failed"
	case obs.Partial:
		result = "partial"
	}
	m.sweepRuns.WithLabelValues(result).Inc()
	m.sweepDuration.Observe(obs.Duration.Seconds())

	for status, n := range obs.Candidates {
		if n > 0 {
			m.sweepCandidates.WithLabelValues(status).Add(float64(n))
		}
	}
	if obs.AutoLinked > 0 {
		m.settlementsCreated.WithLabelValues("AUTOMATIC").Add(float64(obs.AutoLinked))
	}
	if obs.SuggestionsCreated > 0 {
		m.settlementsCreated.WithLabelValues("SUGGESTED").Add(float64(obs.SuggestionsCreated))
	}
}

// IncDomainEvent counts one published domain event
func (m *Metrics) IncDomainEvent(eventType string) {
	m.domainEvents.WithLabelValues(eventType).Inc()
}

// ObserveHTTPRequest records one served request; route is the matched pattern, not the raw path
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveSlowQuery matches SlowQueryObserver so it can be passed to DBTracingPlugin.OnSlowQuery
func (m *Metrics) ObserveSlowQuery(table string, _ time.Duration) {
	if table == "" {
		table = "unknown"
	}
	m.slowQueries.WithLabelValues(table).Inc()
}
