// Package metrics defines the Prometheus collectors exported by rstWeb.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rstweb"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Lifecycle holds the collectors updated by the lifecycle manager.
type Lifecycle struct {
	Converts         *prometheus.CounterVec
	ConvertDuration  *prometheus.HistogramVec
	CleanupFailures  prometheus.Counter
	Imports          *prometheus.CounterVec
	ConsistencyFails *prometheus.CounterVec
}

// NewLifecycle creates the lifecycle collectors and registers them with reg.
func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	m := &Lifecycle{
		Converts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "convert",
				Name:      "requests_total",
				Help:      "Convert workflow invocations by output format and outcome.",
			},
			[]string{"output_format", "outcome"},
		),
		ConvertDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "convert",
				Name:      "duration_seconds",
				Help:      "Wall time of the convert workflow including cleanup.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"output_format"},
		),
		CleanupFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "convert",
				Name:      "cleanup_failures_total",
				Help:      "Scratch documents or projects that could not be removed.",
			},
		),
		Imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "documents",
				Name:      "imports_total",
				Help:      "Document imports by outcome.",
			},
			[]string{"outcome"},
		),
		ConsistencyFails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "consistency_failures_total",
				Help:      "Post-condition checks that failed after a mutation.",
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.Converts, m.ConvertDuration, m.CleanupFailures, m.Imports, m.ConsistencyFails)
	return m
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
