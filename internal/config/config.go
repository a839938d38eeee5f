// Package config defines metroflow configuration and its loading hooks.
//
// Conventions:
// - New returns defaults; Load layers file, .env and environment on top.
// - Loading and validation errors wrap this package's sentinel kinds.
package config

import (
	"path/filepath"
	"time"
)

// Config contains process configuration for both binaries.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// DataDir is the base directory for relative table paths.
	DataDir string `koanf:"data_dir"`

	// Table file names, resolved against DataDir when relative.
	StationsFile      string `koanf:"stations_file"`
	StationsGCJ02File string `koanf:"stations_gcj02_file"`
	ScoresFile        string `koanf:"scores_file"`
	POIsFile          string `koanf:"pois_file"`
	RawFile           string `koanf:"raw_file"`
	TransactionsFile  string `koanf:"transactions_file"`
	NormalizedFile    string `koanf:"normalized_file"`

	// ReferenceDate is the calendar day served by /flow and /station_analysis.
	ReferenceDate string `koanf:"reference_date"`

	// FlowIntervalMinutes is the default bucket width (10 or 30).
	FlowIntervalMinutes int `koanf:"flow_interval_minutes"`

	// AnalysisCacheSize bounds the station analysis LRU.
	AnalysisCacheSize int `koanf:"analysis_cache_size"`

	// AMap web service settings.
	AMapKey     string `koanf:"amap_key"`
	AMapBaseURL string `koanf:"amap_base_url"`
	AMapCity    string `koanf:"amap_city"`

	// SearchRadius is the nearby-search radius in meters.
	SearchRadius int `koanf:"search_radius"`

	// PageSize is the nearby-search page size.
	PageSize int `koanf:"page_size"`

	// RequestTimeoutMS bounds every upstream call.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// GroupDelayMS is the pause between category-group queries.
	GroupDelayMS int `koanf:"group_delay_ms"`

	// WorkerCount sets the number of concurrent station collectors.
	WorkerCount int `koanf:"worker_count"`

	// POIWeights and POIPrefixes optionally replace the built-in classifier tables.
	POIWeights  map[string]float64 `koanf:"poi_weights"`
	POIPrefixes map[string]int     `koanf:"poi_prefixes"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":5000",
		DataDir:             "data",
		StationsFile:        "station_coordinates.csv",
		StationsGCJ02File:   "station_coordinates_gcj02.csv",
		ScoresFile:          "station_type.csv",
		POIsFile:            "station_around.csv",
		RawFile:             "records.jsons",
		TransactionsFile:    "output.csv",
		NormalizedFile:      "output_transformed.csv",
		ReferenceDate:       "2018-09-01",
		FlowIntervalMinutes: 30,
		AnalysisCacheSize:   512,
		AMapBaseURL:         "https://restapi.amap.com",
		AMapCity:            "深圳",
		SearchRadius:        300,
		PageSize:            25,
		RequestTimeoutMS:    10_000,
		GroupDelayMS:        100,
		WorkerCount:         1,
	}
}

// Path resolves a table file name against DataDir.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) || c.DataDir == "" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// RequestTimeout returns the upstream call timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// GroupDelay returns the pause between category-group queries.
func (c *Config) GroupDelay() time.Duration {
	return time.Duration(c.GroupDelayMS) * time.Millisecond
}
