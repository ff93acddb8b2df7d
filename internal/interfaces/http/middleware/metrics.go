package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetrics receives one observation per request.
type HTTPMetrics interface {
	RecordHTTPRequest(method, path string, status int, d time.Duration)
}

// Metrics reports requests labelled by route template, so /takeoffs/:id is
// one series regardless of id.  Unmatched routes are reported as
// "unmatched".
func Metrics(m HTTPMetrics, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
