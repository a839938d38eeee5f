// Package metrics provides Prometheus metrics for the metroflow pipeline and API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric vector registered by metroflow.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// POI collection
	poiRequests        *prometheus.CounterVec
	poiRequestLatency  prometheus.Histogram
	poisAccepted       *prometheus.CounterVec
	stationsProcessed  prometheus.Counter
	stationsSkipped    *prometheus.CounterVec
	stationCommitError prometheus.Counter

	// Transaction normalization
	transactions *prometheus.CounterVec

	// Job queue and workers
	queueSize         prometheus.Gauge
	workerActiveCount prometheus.Gauge

	// Serving
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	analysisCache       *prometheus.CounterVec
	snapshotReloads     prometheus.Counter
	snapshotStations    prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "metroflow",
		subsystem:        "",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.poiRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poi_requests_total",
		Help:      "Nearby-search page requests by category group and outcome",
	}, []string{"group", "outcome"})

	m.poiRequestLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "poi_request_latency_milliseconds",
		Help:      "Latency of nearby-search page requests",
		Buckets:   m.histogramBuckets,
	})

	m.poisAccepted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pois_accepted_total",
		Help:      "POIs with a positive weight, by land-use category",
	}, []string{"category"})

	m.stationsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stations_processed_total",
		Help:      "Stations whose POI scores were collected and persisted",
	})

	m.stationsSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stations_skipped_total",
		Help:      "Stations not collected, by reason",
	}, []string{"reason"})

	m.stationCommitError = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "station_commit_errors_total",
		Help:      "Failed per-station table flushes",
	})

	m.transactions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transactions_total",
		Help:      "Transaction records seen by the normalizer, by outcome",
	}, []string{"outcome"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Station jobs waiting in the collection queue",
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Collection workers currently running",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.analysisCache = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analysis_cache_total",
		Help:      "Station analysis cache lookups by result",
	}, []string{"result"})

	m.snapshotReloads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_reloads_total",
		Help:      "Successful dataset snapshot swaps",
	})

	m.snapshotStations = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_stations",
		Help:      "Stations in the currently served snapshot",
	})
}

// RecordPOIRequest counts one nearby-search page request.
func RecordPOIRequest(group, outcome string, latencyMs float64) {
	globalManager.poiRequests.WithLabelValues(group, outcome).Inc()
	globalManager.poiRequestLatency.Observe(latencyMs)
}

// RecordPOIAccepted counts a POI contributing to a category score.
func RecordPOIAccepted(category string) {
	globalManager.poisAccepted.WithLabelValues(category).Inc()
}

// RecordStationProcessed counts a persisted station.
func RecordStationProcessed() {
	globalManager.stationsProcessed.Inc()
}

// RecordStationSkipped counts a station that was not collected.
func RecordStationSkipped(reason string) {
	globalManager.stationsSkipped.WithLabelValues(reason).Inc()
}

// RecordStationCommitError counts a failed table flush.
func RecordStationCommitError() {
	globalManager.stationCommitError.Inc()
}

// RecordTransaction counts a normalizer outcome.
func RecordTransaction(outcome string) {
	globalManager.transactions.WithLabelValues(outcome).Inc()
}

// UpdateQueueSize sets the pending job count.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateWorkerActiveCount sets the running worker count.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordAnalysisCache records a cache hit or miss.
func RecordAnalysisCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.analysisCache.WithLabelValues(result).Inc()
}

// RecordSnapshotReload records a snapshot swap and its station count.
func RecordSnapshotReload(stations int) {
	globalManager.snapshotReloads.Inc()
	globalManager.snapshotStations.Set(float64(stations))
}

// GetRegistry returns the registry backing the /metrics endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
