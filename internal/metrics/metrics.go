// Package metrics exposes Prometheus instrumentation for supervision
// activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds shihand's Prometheus collectors on a private registry, so
// concurrent instances (and tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	CyclesSupervised *prometheus.CounterVec
	Violations       *prometheus.CounterVec
	Pages            *prometheus.CounterVec
	ComponentErrors  *prometheus.CounterVec
	PlanScores       prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CyclesSupervised: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shihand_cycles_supervised_total",
				Help: "Total supervised cycles by triggering event",
			},
			[]string{"event"},
		),
		Violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shihand_creed_violations_total",
				Help: "Total creed violations found by severity",
			},
			[]string{"severity"},
		),
		Pages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shihand_pages_total",
				Help: "Total escalation pages by delivery channel",
			},
			[]string{"channel"},
		),
		ComponentErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shihand_component_errors_total",
				Help: "Total component failures absorbed by the orchestrator",
			},
			[]string{"component"},
		),
		PlanScores: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shihand_plan_score",
				Help:    "Plan critique totals",
				Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
			},
		),
	}

	m.registry.MustRegister(
		m.CyclesSupervised,
		m.Violations,
		m.Pages,
		m.ComponentErrors,
		m.PlanScores,
	)

	return m
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for test assertions.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
