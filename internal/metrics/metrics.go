// Package metrics collects per-run import counters and writes them in the
// Prometheus text format for a node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hsmimport/internal/importer"
	"hsmimport/internal/planner"
)

// Metrics holds the counters of a single run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Entries     *prometheus.CounterVec
	Batches     *prometheus.CounterVec
	Duration    prometheus.Gauge
	LastSuccess prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsmimport",
			Name:      "entries_total",
			Help:      "List entries by outcome.",
		}, []string{"outcome"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hsmimport",
			Name:      "batches_total",
			Help:      "Batches by final status.",
		}, []string{"status"}),
		Duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hsmimport",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hsmimport",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful run.",
		}),
	}

	m.registry.MustRegister(m.Entries, m.Batches, m.Duration, m.LastSuccess)
	return m
}

// ObserveBatch records one worker result.
func (m *Metrics) ObserveBatch(res importer.Result) {
	m.Entries.WithLabelValues("imported").Add(float64(res.Imported))
	m.Entries.WithLabelValues("skipped").Add(float64(res.Skipped))
	if res.Status == planner.StatusFailed {
		m.Entries.WithLabelValues("failed").Inc()
		m.Entries.WithLabelValues("not_attempted").Add(float64(res.Entries - res.Attempted))
	}
	m.Batches.WithLabelValues(res.Status.String()).Inc()
}

// ObserveRun records the outcome of the whole run.
func (m *Metrics) ObserveRun(d time.Duration, success bool, now time.Time) {
	m.Duration.Set(d.Seconds())
	if success {
		m.LastSuccess.Set(float64(now.Unix()))
	}
}

// WriteFile atomically writes the metrics to path.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
