package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ci-results-api/internal/service"
)

// unmatchedRoute labels requests no route matched, keeping raw paths with
// document ids out of the label set.
const unmatchedRoute = "unmatched"

// Metrics returns middleware that records request duration and status by
// route template. Paths listed in skip are not recorded.
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

		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			return
		}
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
