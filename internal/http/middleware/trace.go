package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/janburzinski/notra/common/logger"
)

// TraceHeader echoes the request trace id so callers can find the run logs.
func TraceHeader(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if name != "" {
			if traceID := logger.TraceID(c.Request.Context()); traceID != "" {
				c.Header(name, traceID)
			}
		}
		c.Next()
	}
}
