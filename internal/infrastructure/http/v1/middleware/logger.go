package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"supplyhub/pkg/logger"
)

// Logger attaches log to the request context and logs every request with
// timing and status. Server errors are logged at warn level.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, "error", errs)
		}

		reqLog := log.WithContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			reqLog.Warnw("http request", fields...)
			return
		}
		reqLog.Infow("http request", fields...)
	}
}
