package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Buckets sized for quote turnaround, which sits well under a second on the
// cached and in-memory paths
var quoteLatencyBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricing_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: quoteLatencyBuckets,
		},
		[]string{"method", "route", "status"},
	)

	inflightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricing_http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Metrics returns a Fiber v3 middleware recording request count, latency, and
// an in-flight gauge for every route.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		inflightRequests.Inc()
		defer inflightRequests.Dec()

		err := c.Next()

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  routeLabel(c),
			"status": strconv.Itoa(c.Response().StatusCode()),
		}
		requestsTotal.With(labels).Inc()
		requestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// routeLabel uses the matched route template (/api/v1/admin/rules/:rule_id)
// rather than the concrete path, keeping the label cardinality bounded.
func routeLabel(c fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}
