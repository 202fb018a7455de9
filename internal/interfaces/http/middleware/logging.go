package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/constants"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

// Logger writes one entry per request once the handler chain returns.
// 5xx logs at error, 4xx at warn, everything else at debug.
func Logger(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}
		for _, key := range []string{constants.ContextKeyRequestID, constants.ContextKeyAgentID} {
			if v, ok := c.Get(key); ok {
				fields = append(fields, key, v)
			}
		}
		if identity := c.Param("identity"); identity != "" {
			fields = append(fields, "identity", identity)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Errorw("request failed", fields...)
		case status >= 400:
			log.Warnw("request rejected", fields...)
		default:
			log.Debugw("request served", fields...)
		}
	}
}
