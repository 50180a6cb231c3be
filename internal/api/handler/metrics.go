package handler

import (
	"math/big"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	custodyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custody_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	custodyRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "custody_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	unitsMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "custody_units_minted_total",
		Help: "Total units minted into vault accounts.",
	})

	unitsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "custody_units_released_total",
		Help: "Total units released from vaults to farmer accounts.",
	})

	unitsBurned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "custody_units_burned_total",
		Help: "Total units burned after spend verification.",
	})
)

// amountMetric converts a unit amount to a counter increment. Amounts past
// float64 range saturate; the counters are operational signals, the event
// log is the authoritative record.
func amountMetric(amount *big.Int) float64 {
	f, _ := new(big.Float).SetInt(amount).Float64()
	return f
}

// PrometheusMiddleware returns a Gin middleware that records per-request
// metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		custodyRequestsTotal.WithLabelValues(method, path, status).Inc()
		custodyRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsEndpoint returns the Prometheus scrape handler wrapped for Gin.
func MetricsEndpoint() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
