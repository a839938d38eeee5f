package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/okian/metroflow/internal/domain/flow"
)

// handleStations handles GET /stations.
func (s *Server) handleStations(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Stations(c.Request.Context()))
}

// handleFlow handles GET /flow?width=10|30.
func (s *Server) handleFlow(c *gin.Context) {
	const op = "api.get_flow"
	width := 0
	if v := c.Query("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		width = n
	}
	rows, err := s.deps.Flow(c.Request.Context(), width)
	if err != nil {
		writeServiceError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// handleStationAnalysis handles GET /station_analysis?station=S&time_slot=T.
func (s *Server) handleStationAnalysis(c *gin.Context) {
	const op = "api.get_station_analysis"
	station, ok := requireStation(c, op)
	if !ok {
		return
	}
	slot := flow.WholeDaySlot
	if v := c.Query("time_slot"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		slot = n
	}
	a, err := s.deps.StationAnalysis(c.Request.Context(), station, slot)
	if err != nil {
		writeServiceError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// handleStationType handles GET /station_type?station=S.
func (s *Server) handleStationType(c *gin.Context) {
	const op = "api.get_station_type"
	station, ok := requireStation(c, op)
	if !ok {
		return
	}
	v, err := s.deps.StationType(c.Request.Context(), station)
	if err != nil {
		writeServiceError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// handleStationPOIs handles GET /station_pois?station=S.
func (s *Server) handleStationPOIs(c *gin.Context) {
	const op = "api.get_station_pois"
	station, ok := requireStation(c, op)
	if !ok {
		return
	}
	v, err := s.deps.StationPOIs(c.Request.Context(), station)
	if err != nil {
		writeServiceError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func requireStation(c *gin.Context, op string) (string, bool) {
	station := strings.TrimSpace(c.Query("station"))
	if station == "" {
		writeError(c, http.StatusBadRequest, "missing_station", NewKind(op, ErrBadRequest))
		return "", false
	}
	return station, true
}
