// Package metrics exposes Prometheus collectors for the API and worker.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docuflow"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimitedTotal    *prometheus.CounterVec

	jobsProcessedTotal *prometheus.CounterVec
	jobDuration        prometheus.Histogram

	aiRequestsTotal      *prometheus.CounterVec
	webhookEventsTotal   *prometheus.CounterVec
	realtimeConnections  prometheus.Gauge
	documentsUploadBytes prometheus.Histogram
}

// New creates a registry with process and Go runtime collectors plus the service metrics.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	return &Metrics{
		registry: reg,
		httpRequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimitedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		jobsProcessedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_processed_total",
			Help:      "Jobs handled by the worker by type and result (ok, retry, dead).",
		}, []string{"type", "result"}),
		jobDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Time spent processing a single job.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		aiRequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "requests_total",
			Help:      "OpenAI calls by operation and result.",
		}, []string{"operation", "result"}),
		webhookEventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhook_events_total",
			Help:      "Stripe webhook events received by type.",
		}, []string{"type"}),
		realtimeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open WebSocket connections on this instance.",
		}),
		documentsUploadBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "upload_bytes",
			Help:      "Size of uploaded document files.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
		}),
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one completed request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(route).Inc()
}

// JobProcessed records a worker job outcome.
func (m *Metrics) JobProcessed(jobType, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobsProcessedTotal.WithLabelValues(jobType, result).Inc()
	m.jobDuration.Observe(elapsed.Seconds())
}

// AIRequest records an OpenAI call.
func (m *Metrics) AIRequest(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.aiRequestsTotal.WithLabelValues(operation, result).Inc()
}

// WebhookEvent counts a received Stripe event.
func (m *Metrics) WebhookEvent(eventType string) {
	if m == nil {
		return
	}
	m.webhookEventsTotal.WithLabelValues(eventType).Inc()
}

// RealtimeConnected adjusts the open connection gauge by delta.
func (m *Metrics) RealtimeConnected(delta int) {
	if m == nil {
		return
	}
	m.realtimeConnections.Add(float64(delta))
}

// DocumentUploaded records an upload size.
func (m *Metrics) DocumentUploaded(size int64) {
	if m == nil {
		return
	}
	m.documentsUploadBytes.Observe(float64(size))
}
