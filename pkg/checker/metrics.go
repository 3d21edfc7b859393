package checker

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by a Checker.
type Metrics struct {
	ValidationsTotal   *prometheus.CounterVec
	ValidationDuration *prometheus.HistogramVec
	FixesTotal         *prometheus.CounterVec
}

// NewMetrics creates and registers all checker metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		ValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapcheck_validations_total",
				Help: "Total number of package validations",
			},
			[]string{"outcome", "kind"},
		),
		ValidationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapcheck_validation_duration_seconds",
				Help:    "Package load and validation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"outcome"},
		),
		FixesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapcheck_manifest_fixes_total",
				Help: "Total number of manifest fields rewritten by the fixer",
			},
			[]string{"field"},
		),
	}

	registry.MustRegister(
		m.ValidationsTotal,
		m.ValidationDuration,
		m.FixesTotal,
	)

	return m
}

func (m *Metrics) observe(r Result) {
	if m == nil {
		return
	}
	m.ValidationsTotal.WithLabelValues(string(r.Outcome), r.Kind).Inc()
	m.ValidationDuration.WithLabelValues(string(r.Outcome)).Observe(r.Duration.Seconds())
}

func (m *Metrics) observeFix(f Fix) {
	if m == nil {
		return
	}
	m.FixesTotal.WithLabelValues(f.Field).Inc()
}

// WriteTextfile writes every metric gathered by g to path in the Prometheus
// text format, for pickup by a node exporter textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
