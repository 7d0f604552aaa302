package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/voice-attendance-api/internal/service"
)

// unmatchedRoute labels requests that hit no registered route.
const unmatchedRoute = "unmatched"

// Metrics records count and latency of every request against the route
// pattern that served it, e.g. "/api/v1/students/:id". Requests that match
// no route share the "unmatched" label. A nil service disables recording.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, duration)
	}
}
