package middleware

import (
	"strconv"
	"time"

	"github.com/cartdotfun/settlement-backend/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics observes per-request latency. The route template is used instead
// of the raw path so /api/deals/:id stays one series.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
