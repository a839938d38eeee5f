package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okian/metroflow/pkg/logger"
	"github.com/okian/metroflow/pkg/metrics"
)

const unmatchedEndpoint = "unmatched"

// metricsMiddleware records request counts and durations per route.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = unmatchedEndpoint
		}
		durationMs := float64(time.Since(start).Milliseconds())
		metrics.RecordHTTPRequest(endpoint, c.Request.Method, strconv.Itoa(c.Writer.Status()), durationMs)
	}
}

// corsMiddleware allows every origin; the dashboard is served from another port.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", status),
			logger.Duration("took", time.Since(start)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error(c.Request.Context(), "request failed", append(fields, logger.String("error", c.Errors.String()))...)
		case status >= http.StatusBadRequest:
			s.logger.Warn(c.Request.Context(), "request rejected", fields...)
		default:
			s.logger.Debug(c.Request.Context(), "request", fields...)
		}
	}
}
