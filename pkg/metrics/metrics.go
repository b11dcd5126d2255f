// Package metrics holds the swap service's prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the subset the executor reports into. A nil *Swap is a valid
// no-op recorder.
type Recorder interface {
	Outcome(kind string)
	Step(step string, took time.Duration, err error)
}

// Swap holds the swap collectors on a private registry.
type Swap struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	steps    *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// New creates and registers the swap collectors.
func New() *Swap {
	m := &Swap{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "swap_requests_total", Help: "Swap requests by outcome"},
			[]string{"outcome"},
		),
		steps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swap_step_duration_seconds",
				Help:    "Latency of upstream swap steps",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"step"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "swap_step_failures_total", Help: "Failed upstream swap steps"},
			[]string{"step"},
		),
	}
	m.registry.MustRegister(m.requests, m.steps, m.failures)
	return m
}

// Outcome counts one finished request. kind is "ok" or an error kind.
func (m *Swap) Outcome(kind string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind).Inc()
}

// Step observes one upstream step and counts it as failed when err is set.
func (m *Swap) Step(step string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step).Observe(took.Seconds())
	if err != nil {
		m.failures.WithLabelValues(step).Inc()
	}
}

// Registry returns the private registry.
func (m *Swap) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Swap) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
