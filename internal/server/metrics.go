package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one server. Each server has its
// own registry so several can coexist in a process.
type Metrics struct {
	registry       *prometheus.Registry
	framesRendered *prometheus.CounterVec
	renderDuration prometheus.Histogram
	streamClients  prometheus.Gauge
	framesStreamed prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fourierwaves",
			Name:      "frames_rendered_total",
			Help:      "Number of frames rendered, by output mode.",
		}, []string{"mode"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fourierwaves",
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering and encoding one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fourierwaves",
			Name:      "stream_clients",
			Help:      "Number of connected websocket preview clients.",
		}),
		framesStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fourierwaves",
			Name:      "frames_streamed_total",
			Help:      "Number of frames pushed to websocket clients.",
		}),
	}
	m.registry.MustRegister(m.framesRendered, m.renderDuration, m.streamClients, m.framesStreamed)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRender(mode string, d time.Duration) {
	m.framesRendered.WithLabelValues(mode).Inc()
	m.renderDuration.Observe(d.Seconds())
}
