// Package metrics holds the Prometheus collectors of the dashboard. They are
// registered on a private registry so that tests can build as many as they
// need.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	reg *prometheus.Registry

	SliceFetches    *prometheus.CounterVec
	SliceSuppressed *prometheus.CounterVec
	GateDecisions   *prometheus.CounterVec
	InvoiceOps      *prometheus.CounterVec
	Receipts        *prometheus.CounterVec
	RemoteLatency   *prometheus.HistogramVec
	ActiveResources prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		SliceFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mboa_slice_fetches_total",
			Help: "Resource slice fetches by resource and outcome.",
		}, []string{"resource", "outcome"}),
		SliceSuppressed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mboa_slice_fetches_suppressed_total",
			Help: "Fetches dropped because one was already in flight.",
		}, []string{"resource"}),
		GateDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mboa_gate_decisions_total",
			Help: "Auth gate and section access decisions.",
		}, []string{"decision"}),
		InvoiceOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mboa_invoice_operations_total",
			Help: "Invoice create, update and delete attempts by outcome.",
		}, []string{"op", "outcome"}),
		Receipts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mboa_receipts_total",
			Help: "Receipt generation by outcome.",
		}, []string{"outcome"}),
		RemoteLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mboa_remote_request_seconds",
			Help:    "Latency of calls to the remote API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ActiveResources: f.NewGauge(prometheus.GaugeOpts{
			Name: "mboa_active_resource_sets",
			Help: "Per-browser resource sets currently cached.",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveFetch records a slice fetch outcome. It is safe on a nil receiver.
func (m *Metrics) ObserveFetch(resource, outcome string) {
	if m == nil {
		return
	}
	if outcome == "suppressed" {
		m.SliceSuppressed.WithLabelValues(resource).Inc()
		return
	}
	m.SliceFetches.WithLabelValues(resource, outcome).Inc()
}

// ObserveGate records an access decision. It is safe on a nil receiver.
func (m *Metrics) ObserveGate(decision string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(decision).Inc()
}

// ObserveInvoice records an invoice operation. It is safe on a nil receiver.
func (m *Metrics) ObserveInvoice(op, outcome string) {
	if m == nil {
		return
	}
	m.InvoiceOps.WithLabelValues(op, outcome).Inc()
}

// ObserveReceipt records a receipt outcome. It is safe on a nil receiver.
func (m *Metrics) ObserveReceipt(outcome string) {
	if m == nil {
		return
	}
	m.Receipts.WithLabelValues(outcome).Inc()
}

// ObserveRemote records the latency of one remote call in seconds.
func (m *Metrics) ObserveRemote(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.RemoteLatency.WithLabelValues(endpoint).Observe(seconds)
}

// SetActiveResources reports the cached resource set count.
func (m *Metrics) SetActiveResources(n int) {
	if m == nil {
		return
	}
	m.ActiveResources.Set(float64(n))
}
