package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matchpulse/backend/internal/metrics"
)

// Metrics records Prometheus counters and latency histograms per request
func Metrics() gin.HandlerFunc {
	m := metrics.Get()

	return func(c *gin.Context) {
		method := c.Request.Method
		// Use the route template so path cardinality stays bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.HTTPActiveRequests.WithLabelValues(method, path).Inc()
		defer m.HTTPActiveRequests.WithLabelValues(method, path).Dec()

		startTime := time.Now()
		c.Next()
		duration := time.Since(startTime).Seconds()

		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	}
}
