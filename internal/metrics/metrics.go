// Package metrics exposes relay counters over Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hiprelay"

// Metrics holds the relay collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	reg *prometheus.Registry

	dispatch       *prometheus.CounterVec
	sendDuration   *prometheus.HistogramVec
	deliveryErrors *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	dropped        *prometheus.CounterVec
	restarts       *prometheus.CounterVec
}

// New registers collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		dispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Dispatches by event kind and outcome (sent, suppressed, skipped, failed).",
		}, []string{"kind", "outcome"}),
		sendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time spent in a single chat API call.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 3, 5, 10},
		}, []string{"kind"}),
		deliveryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_errors_total",
			Help:      "Delivery problems by error kind.",
		}, []string{"kind"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Events waiting for a dispatch worker.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Events rejected before dispatch, by reason.",
		}, []string{"reason"}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_total",
			Help:      "Supervised goroutine restarts (ingest listeners, dispatch workers).",
		}, []string{"name"}),
	}
	m.reg.MustRegister(
		m.dispatch, m.sendDuration, m.deliveryErrors, m.queueDepth, m.dropped, m.restarts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveDispatch(kind, outcome string) {
	if m == nil {
		return
	}
	m.dispatch.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveSend(kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.sendDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) ObserveDeliveryError(kind string) {
	if m == nil {
		return
	}
	m.deliveryErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) ObserveDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRestart(name string) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(name).Inc()
}
