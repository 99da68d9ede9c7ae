package services

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autoreply-bot/models"
)

const metricsNamespace = "autoreply"

// Metrics holds the bot's Prometheus collectors on a dedicated registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RepliesTotal      *prometheus.CounterVec
	AIRequestsTotal   *prometheus.CounterVec
	AIRequestDuration *prometheus.HistogramVec
	DispatchDropped   *prometheus.CounterVec
	DispatchQueue     prometheus.Gauge
	ConnectionTests   *prometheus.CounterVec
	DeliveriesTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RepliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "replies_total",
			Help:      "Replies produced by the response pipeline",
		}, []string{"context", "source"}),
		AIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ai_requests_total",
			Help:      "Generative backend calls",
		}, []string{"backend", "status"}),
		AIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Duration of generative backend calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
		DispatchDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dispatcher_dropped_total",
			Help:      "Webhook jobs rejected because the queue was full",
		}, []string{"kind"}),
		DispatchQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "dispatcher_queue_depth",
			Help:      "Jobs waiting in the dispatch queue",
		}),
		ConnectionTests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connection_tests_total",
			Help:      "Connection tests by service and outcome",
		}, []string{"service", "status"}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Outbound replies by channel and outcome",
		}, []string{"channel", "status"}),
	}

	reg.MustRegister(
		m.RepliesTotal,
		m.AIRequestsTotal,
		m.AIRequestDuration,
		m.DispatchDropped,
		m.DispatchQueue,
		m.ConnectionTests,
		m.DeliveriesTotal,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveReply(ctxType models.InquiryContext, source models.ReplySource) {
	if m == nil {
		return
	}
	m.RepliesTotal.WithLabelValues(string(ctxType), string(source)).Inc()
}

func (m *Metrics) ObserveAI(backend Backend, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.AIRequestsTotal.WithLabelValues(backend.String(), status).Inc()
	m.AIRequestDuration.WithLabelValues(backend.String()).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDropped(kind string) {
	if m == nil {
		return
	}
	m.DispatchDropped.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.DispatchQueue.Set(float64(n))
}

func (m *Metrics) ObserveConnectionTest(service, status string) {
	if m == nil {
		return
	}
	m.ConnectionTests.WithLabelValues(service, status).Inc()
}

func (m *Metrics) ObserveDelivery(channel string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DeliveriesTotal.WithLabelValues(channel, status).Inc()
}

// logOperational writes an operational event to the process log
func logOperational(level, message, service string) {
	switch level {
	case LevelError:
		slog.Error(message, "service", service)
	case LevelWarning:
		slog.Warn(message, "service", service)
	default:
		slog.Info(message, "service", service)
	}
}
