package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	envelopesSentTotal   prometheus.Counter
	envelopesFailedTotal *prometheus.CounterVec
	envelopeSendDuration prometheus.Histogram
	batchesCompleted     *prometheus.CounterVec
	batchesInFlight      prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "envelope_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "envelope_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		envelopesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "envelope_engine",
				Name:      "envelopes_sent_total",
				Help:      "Total number of bulk send envelopes delivered successfully.",
			},
		),
		envelopesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "envelope_engine",
				Name:      "envelopes_failed_total",
				Help:      "Total number of bulk send envelopes that failed, by reason.",
			},
			[]string{"reason"},
		),
		envelopeSendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "envelope_engine",
				Name:      "envelope_send_duration_seconds",
				Help:      "Delivery gateway send duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		batchesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "envelope_engine",
				Name:      "batches_completed_total",
				Help:      "Total number of batches reaching a terminal status.",
			},
			[]string{"status"},
		),
		batchesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "envelope_engine",
				Name:      "batches_in_flight",
				Help:      "Current number of batches being processed.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.envelopesSentTotal,
		m.envelopesFailedTotal,
		m.envelopeSendDuration,
		m.batchesCompleted,
		m.batchesInFlight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncEnvelopeSent() {
	if m == nil {
		return
	}
	m.envelopesSentTotal.Inc()
}

func (m *Metrics) IncEnvelopeFailed(reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.envelopesFailedTotal.WithLabelValues(reasonLabel).Inc()
}

func (m *Metrics) ObserveEnvelopeSendDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.envelopeSendDuration.Observe(seconds)
}

func (m *Metrics) IncBatchCompleted(status string) {
	if m == nil {
		return
	}
	statusLabel := strings.TrimSpace(strings.ToUpper(status))
	if statusLabel == "" {
		statusLabel = "UNKNOWN"
	}
	m.batchesCompleted.WithLabelValues(statusLabel).Inc()
}

func (m *Metrics) IncBatchInFlight() {
	if m == nil {
		return
	}
	m.batchesInFlight.Inc()
}

func (m *Metrics) DecBatchInFlight() {
	if m == nil {
		return
	}
	m.batchesInFlight.Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
