// Package metrics exposes the gateway Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can take it as an
// optional dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcpauth"

// Metrics groups the collectors registered on a dedicated registry.
type Metrics struct {
	registry        *prometheus.Registry
	storeEntries    *prometheus.GaugeVec
	storeErrors     *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	sweepRemoved    *prometheus.CounterVec
	exchanges       *prometheus.CounterVec
	sessionBindings prometheus.Gauge
}

// New creates collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		storeEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "tokenstore", Name: "entries",
			Help: "Number of subject to token mappings held by the token store.",
		}, []string{"backend"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "errors_total",
			Help: "Backend failures degraded to not-found results.",
		}, []string{"component", "op"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "resolver", Name: "resolutions_total",
			Help: "Per-request credential resolution outcomes.",
		}, []string{"source", "outcome"}),
		sweepRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sweeper", Name: "removed_total",
			Help: "Entries removed by reconciliation and cleanup sweeps.",
		}, []string{"kind"}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "oauth", Name: "exchanges_total",
			Help: "Authorization code and refresh exchanges by outcome.",
		}, []string{"grant", "outcome"}),
		sessionBindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "bindings",
			Help: "Number of transport sessions bound to a credential.",
		}),
	}
	m.registry.MustRegister(m.storeEntries, m.storeErrors, m.resolutions, m.sweepRemoved, m.exchanges, m.sessionBindings)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) StoreEntries(backend string, n int) {
	if m == nil {
		return
	}
	m.storeEntries.WithLabelValues(backend).Set(float64(n))
}

func (m *Metrics) StorageError(component, op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(component, op).Inc()
}

func (m *Metrics) Resolution(source, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) SweepRemoved(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepRemoved.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) Exchange(grant, outcome string) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(grant, outcome).Inc()
}

func (m *Metrics) SessionBindings(n int) {
	if m == nil {
		return
	}
	m.sessionBindings.Set(float64(n))
}
