// Package api serves the read-only JSON API over the current dataset snapshot.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	service "github.com/okian/metroflow/internal/app"
	"github.com/okian/metroflow/internal/domain/flow"
	"github.com/okian/metroflow/internal/domain/model"
	"github.com/okian/metroflow/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Health() service.Health
	Stations(ctx context.Context) []service.StationView
	Flow(ctx context.Context, width int) ([]model.FlowRow, error)
	StationAnalysis(ctx context.Context, station string, slot int) (flow.Analysis, error)
	StationType(ctx context.Context, station string) (service.StationTypeView, error)
	StationPOIs(ctx context.Context, station string) (service.StationPOIsView, error)
}

// Server wires HTTP routes for the read API.
type Server struct {
	deps   Dependencies
	engine *gin.Engine
	logger logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates the router with every route registered.
func NewServer(deps Dependencies, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		deps:   deps,
		engine: gin.New(),
		logger: logger.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(gin.Recovery(), corsMiddleware(), s.requestLogger(), metricsMiddleware())
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", handleMetrics())

	s.register(s.engine.Group("/"))
	// The dashboard front end calls the same routes under /api.
	s.register(s.engine.Group("/api"))
	return s
}

func (s *Server) register(r *gin.RouterGroup) {
	r.GET("/stations", s.handleStations)
	r.GET("/flow", s.handleFlow)
	r.GET("/station_analysis", s.handleStationAnalysis)
	r.GET("/station_type", s.handleStationType)
	r.GET("/station_pois", s.handleStationPOIs)
}

// Engine exposes the gin engine so other route sets can be attached.
func (s *Server) Engine() *gin.Engine { return s.engine }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service error kinds to HTTP statuses.
func writeServiceError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(c, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrStationNotFound):
		writeError(c, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	default:
		writeError(c, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}
