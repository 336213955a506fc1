// Package metrics provides Prometheus metrics for the clinic orchestrators.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the orchestrator metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_operations_total",
			Help: "Orchestrator operations by outcome (success, failure code or error)",
		}, []string{"operation", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clinic_operation_duration_seconds",
			Help:    "Orchestrator operation duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
	}
	reg.MustRegister(m.Operations, m.Duration)
	return m
}

// Observe records one finished operation.
func (m *Metrics) Observe(operation string, start time.Time, code string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, Outcome(code, err)).Inc()
	m.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Outcome maps an operation's failure code and error to a label value.
func Outcome(code string, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case code != "":
		return code
	default:
		return OutcomeSuccess
	}
}

// Handler returns the Prometheus HTTP handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
