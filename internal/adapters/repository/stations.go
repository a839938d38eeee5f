package repository

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/metroflow/internal/domain/model"
	"github.com/paulmach/orb"
)

const (
	colStation   = "station_name"
	colLongitude = "longitude"
	colLatitude  = "latitude"
)

var stationColumns = []column{
	col(colStation, "站名"),
	col(colLongitude, "经度"),
	col(colLatitude, "纬度"),
}

// StationHeader is the header row of the Station table.
var StationHeader = []string{colStation, colLongitude, colLatitude}

// ReadStations loads a Station table. Rows with an empty or non-numeric
// coordinate get a nil location; duplicate names keep their first row.
func ReadStations(path string) ([]model.Station, error) {
	var out []model.Station
	seen := make(map[string]struct{})
	err := scanTable(path, stationColumns, []string{colStation, colLongitude, colLatitude}, func(h header, rec []string) error {
		name := strings.TrimSpace(h.get(rec, colStation))
		if name == "" {
			return nil
		}
		if _, dup := seen[name]; dup {
			return nil
		}
		seen[name] = struct{}{}
		out = append(out, model.Station{
			Name:     name,
			Location: parsePoint(h.get(rec, colLongitude), h.get(rec, colLatitude)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteStations atomically writes a Station table.
func WriteStations(path string, stations []model.Station) error {
	rows := make([][]string, 0, len(stations))
	for _, s := range stations {
		lon, lat := "", ""
		if s.Location != nil {
			lon, lat = formatFloat(s.Location.Lon()), formatFloat(s.Location.Lat())
		}
		rows = append(rows, []string{s.Name, lon, lat})
	}
	if err := writeTable(path, StationHeader, rows); err != nil {
		return fmt.Errorf("write stations: %w", err)
	}
	return nil
}

func parsePoint(lonStr, latStr string) *orb.Point {
	lon, ok := parseFloat(lonStr)
	if !ok {
		return nil
	}
	lat, ok := parseFloat(latStr)
	if !ok {
		return nil
	}
	return &orb.Point{lon, lat}
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
