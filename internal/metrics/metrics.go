// Package metrics provides Prometheus instrumentation for qrwidget.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RenderLatencyBuckets are latency buckets for one QR paint.
var RenderLatencyBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}

// Metrics holds all collectors. A nil *Metrics records nothing.
type Metrics struct {
	// RenderLatency tracks render delegate paints
	RenderLatency *prometheus.HistogramVec

	// RenderTotal counts paints by backend and outcome
	RenderTotal *prometheus.CounterVec

	// SnapshotTotal counts poller exports of a mounted canvas
	SnapshotTotal prometheus.Counter

	// IconProbeTotal counts icon decode probes by outcome
	IconProbeTotal *prometheus.CounterVec

	// ActiveWidgets tracks live widget sessions
	ActiveWidgets prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		RenderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qrwidget_render_latency_seconds",
				Help:    "QR render latency in seconds",
				Buckets: RenderLatencyBuckets,
			},
			[]string{"backend"},
		),
		RenderTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrwidget_render_total",
				Help: "Total QR renders",
			},
			[]string{"backend", "status"},
		),
		SnapshotTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrwidget_snapshot_total",
			Help: "Total canvas exports to PNG data URLs",
		}),
		IconProbeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qrwidget_icon_probe_total",
				Help: "Total icon decode probes",
			},
			[]string{"status"},
		),
		ActiveWidgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qrwidget_active_widgets",
			Help: "Number of live widget sessions",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RenderLatency,
		m.RenderTotal,
		m.SnapshotTotal,
		m.IconProbeTotal,
		m.ActiveWidgets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pre-initialize labels so series are exposed immediately
	for _, status := range []string{"success", "error", "cancelled"} {
		m.IconProbeTotal.WithLabelValues(status)
	}

	return m
}

// ObserveRender records one paint.
func (m *Metrics) ObserveRender(backend string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RenderLatency.WithLabelValues(backend).Observe(d.Seconds())
	m.RenderTotal.WithLabelValues(backend, status).Inc()
}

// ObserveSnapshot records one canvas export.
func (m *Metrics) ObserveSnapshot() {
	if m == nil {
		return
	}
	m.SnapshotTotal.Inc()
}

// ObserveIconProbe records a probe outcome: success, error or cancelled.
func (m *Metrics) ObserveIconProbe(status string) {
	if m == nil {
		return
	}
	m.IconProbeTotal.WithLabelValues(status).Inc()
}

// WidgetOpened and WidgetClosed track the session gauge.
func (m *Metrics) WidgetOpened() {
	if m == nil {
		return
	}
	m.ActiveWidgets.Inc()
}

func (m *Metrics) WidgetClosed() {
	if m == nil {
		return
	}
	m.ActiveWidgets.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
