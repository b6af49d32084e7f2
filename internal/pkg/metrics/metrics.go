package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of bookings created",
	})

	BookingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transitions_total",
		Help: "Total number of successful booking status transitions",
	}, []string{"target"})

	BookingTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_transitions_rejected_total",
		Help: "Total number of rejected booking transition attempts",
	}, []string{"reason"})

	CompletionVerifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "completion_verify_failures_total",
		Help: "Total number of completion code mismatches",
	})

	SweeperExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_expired_total",
		Help: "Total number of stale bookings expired by the sweeper",
	})

	SweeperFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_failures_total",
		Help: "Total number of per-booking sweeper failures",
	})

	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "event_publish_failures_total",
		Help: "Total number of failed event emissions",
	}, []string{"topic"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Middleware records per-request latency labelled by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
