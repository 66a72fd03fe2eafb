package writes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records write outcomes. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	actionsTotal   *prometheus.CounterVec
	attemptsTotal  prometheus.Counter
	rollbacksTotal *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

// NewMetrics registers the write metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		actionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv2appconfig_write_actions_total",
				Help: "Total number of write actions by type and final status",
			},
			[]string{"action", "status"},
		),
		attemptsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "kv2appconfig_write_attempts_total",
				Help: "Total number of store write attempts including retries",
			},
		),
		rollbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kv2appconfig_rollbacks_total",
				Help: "Total number of rollback attempts by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kv2appconfig_write_run_duration_seconds",
				Help:    "Duration of plan execution in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordResult counts one finished action.
func (m *Metrics) RecordResult(action ActionType, result WriteResult) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(string(action), string(result.Status)).Inc()
	if result.Attempts > 0 {
		m.attemptsTotal.Add(float64(result.Attempts))
	}
}

// RecordRollback counts one rollback attempt.
func (m *Metrics) RecordRollback(ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "succeeded"
	}
	m.rollbacksTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records the duration of one plan execution.
func (m *Metrics) ObserveRun(seconds float64) {
	if m == nil {
		return
	}
	m.runDuration.Observe(seconds)
}

// WriteTextfile writes the metrics in text exposition format, for the node
// exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
