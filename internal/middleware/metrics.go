package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/packing-qr-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics observes request latency per route template. Requests that match no
// route share one label so scanners probing random paths cannot grow the series.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if _, ok := skipped[path]; ok {
			return
		}
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
