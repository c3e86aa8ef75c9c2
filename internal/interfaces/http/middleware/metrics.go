package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestObserver records served requests; telemetry.Metrics implements it
type RequestObserver interface {
	ObserveHTTPRequest(method, route string, status int, elapsed time.Duration)
}

// HTTPMetrics reports every request to obs, labelled by route pattern rather than raw path
func HTTPMetrics(obs RequestObserver) gin.HandlerFunc {
	if obs == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		obs.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
