package sweep

import "github.com/palletledger/backend/internal/infrastructure/telemetry"

// PrometheusMetrics adapts telemetry.Metrics to the sweep's Metrics interface
type PrometheusMetrics struct {
	m *telemetry.Metrics
}

// NewPrometheusMetrics creates a new PrometheusMetrics
func NewPrometheusMetrics(m *telemetry.Metrics) *PrometheusMetrics {
	return &PrometheusMetrics{m: m}
}

// ObserveRun implements Metrics
func (p *PrometheusMetrics) ObserveRun(report *Report) {
	candidates := make(map[string]int, 8)
	for _, d := range report.Details {
		candidates[string(d.Status)]++
	}
	p.m.ObserveSweep(telemetry.SweepObservation{
		Duration:           report.Duration(),
		Partial:            report.Partial,
		Candidates:         candidates,
		AutoLinked:         report.Counters.AutoLinked,
		SuggestionsCreated: report.Counters.SuggestionsCreated,
	})
}
