// Package metrics exposes Prometheus collectors for classification runs.
//
// Metrics implements core.Observer, so the service reports outcomes without
// importing client_golang itself. Collectors live in a private registry that
// the web server exposes through Handler.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HOUCINE710/csv-fille-Processed/internal/core"
)

const namespace = "pressure"

// Run outcomes used as the "outcome" label.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the registry and every collector of the application.
type Metrics struct {
	reg *prometheus.Registry

	rows        *prometheus.CounterVec   // pressure_rows_total{policy,status}
	dropped     *prometheus.CounterVec   // pressure_rows_dropped_total{policy}
	files       *prometheus.CounterVec   // pressure_files_total{result}
	runs        *prometheus.CounterVec   // pressure_runs_total{policy,outcome}
	exports     *prometheus.CounterVec   // pressure_exports_total{format}
	runDuration *prometheus.HistogramVec // pressure_run_duration_seconds{policy}
}

// New creates the collectors and registers them, plus the Go and process
// collectors, on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Classified rows by policy and status.",
		}, []string{"policy", "status"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows discarded by the classifier.",
		}, []string{"policy"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files parsed, by whether reading completed.",
		}, []string{"result"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batch runs by policy and outcome.",
		}, []string{"policy", "outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Result downloads by format.",
		}, []string{"format"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of successful batch runs.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"policy"}),
	}

	toRegister := []prometheus.Collector{
		m.rows, m.dropped, m.files, m.runs, m.exports, m.runDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := m.reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// RunCompleted implements core.Observer.
func (m *Metrics) RunCompleted(run core.RunSummary, statuses map[core.Status]int) {
	policy := string(run.Policy)

	m.runs.WithLabelValues(policy, OutcomeSuccess).Inc()
	m.runDuration.WithLabelValues(policy).Observe(run.Duration.Seconds())
	for status, n := range statuses {
		m.rows.WithLabelValues(policy, string(status)).Add(float64(n))
	}
	m.dropped.WithLabelValues(policy).Add(float64(run.Dropped))

	for _, f := range run.Files {
		result := "ok"
		if f.ReadErr != "" {
			result = "read_error"
		}
		m.files.WithLabelValues(result).Inc()
	}
}

// RunFailed implements core.Observer. Runs turned away before starting are
// counted as rejected.
func (m *Metrics) RunFailed(policy core.Policy, err error) {
	outcome := OutcomeFailed
	if core.MapError(err).Code == "RUN001" || core.IsValidation(err) {
		outcome = OutcomeRejected
	}
	m.runs.WithLabelValues(string(policy), outcome).Inc()
}

// Exported implements core.Observer.
func (m *Metrics) Exported(format string, _ int) {
	m.exports.WithLabelValues(format).Inc()
}
