package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/okian/metroflow/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Health())
}

// handleMetrics serves the custom Prometheus registry.
func handleMetrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}
