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

// Metrics stores Prometheus collectors for the API, tick, and watcher
// flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	ticksTotal           prometheus.Counter
	tickDuration         prometheus.Histogram
	enrollmentsProcessed *prometheus.CounterVec
	claimMissesTotal     prometheus.Counter
	dispatchDuration     prometheus.Histogram
	tickInflight         prometheus.Gauge
	watcherEnrolledTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "drip_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "drip_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ticksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip_engine",
				Name:      "ticks_total",
				Help:      "Total number of tick scheduler runs.",
			},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "drip_engine",
				Name:      "tick_duration_seconds",
				Help:      "Tick run duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		enrollmentsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "drip_engine",
				Name:      "enrollments_processed_total",
				Help:      "Total enrollments processed by a tick grouped by outcome.",
			},
			[]string{"outcome"},
		),
		claimMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip_engine",
				Name:      "claim_misses_total",
				Help:      "Total enrollment claims lost to a concurrent tick.",
			},
		),
		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "drip_engine",
				Name:      "dispatch_duration_seconds",
				Help:      "Provider dispatch duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		tickInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "drip_engine",
				Name:      "tick_inflight_enrollments",
				Help:      "Current number of enrollments being processed by a tick.",
			},
		),
		watcherEnrolledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "drip_engine",
				Name:      "watcher_enrolled_total",
				Help:      "Total enrollments created by the folder watcher.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.ticksTotal,
		m.tickDuration,
		m.enrollmentsProcessed,
		m.claimMissesTotal,
		m.dispatchDuration,
		m.tickInflight,
		m.watcherEnrolledTotal,
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

func (m *Metrics) ObserveTick(duration time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.tickDuration.Observe(seconds)
}

func (m *Metrics) IncEnrollmentOutcome(outcome string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(outcome))
	if label == "" {
		label = "unknown"
	}
	m.enrollmentsProcessed.WithLabelValues(label).Inc()
}

func (m *Metrics) IncClaimMiss() {
	if m == nil {
		return
	}
	m.claimMissesTotal.Inc()
}

func (m *Metrics) ObserveDispatchDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.dispatchDuration.Observe(seconds)
}

func (m *Metrics) IncTickInFlight() {
	if m == nil {
		return
	}
	m.tickInflight.Inc()
}

func (m *Metrics) DecTickInFlight() {
	if m == nil {
		return
	}
	m.tickInflight.Dec()
}

func (m *Metrics) AddWatcherEnrolled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.watcherEnrolledTotal.Add(float64(n))
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
