package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bluele/gcache"
	"github.com/okian/metroflow/internal/adapters/repository"
	"github.com/okian/metroflow/internal/domain/coord"
	"github.com/okian/metroflow/internal/domain/flow"
	"github.com/okian/metroflow/internal/domain/model"
	"github.com/okian/metroflow/internal/domain/poi"
	"github.com/okian/metroflow/internal/domain/scoring"
	"github.com/okian/metroflow/pkg/logger"
	"github.com/okian/metroflow/pkg/metrics"
)

// SnapshotLoader reads every served table into a new snapshot.
type SnapshotLoader func(ctx context.Context) (*repository.Snapshot, error)

// StationView is one row of the stations listing.
type StationView struct {
	Name      string  `json:"station_name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// LocationView is a WGS-84 point.
type LocationView struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// StationTypeView is the category breakdown of a station.
type StationTypeView struct {
	Categories []string  `json:"categories"`
	Values     []float64 `json:"values"`
	RawValues  []float64 `json:"raw_values"`
}

// POIView is one scored POI near a station.
type POIView struct {
	Name         string       `json:"name"`
	Type         int          `json:"type"`
	TypeName     string       `json:"type_name"`
	OriginalType string       `json:"original_type"`
	Location     LocationView `json:"location"`
	DistanceM    *float64     `json:"distance_m,omitempty"`
}

// StationPOIsView lists the POIs around a station.
type StationPOIsView struct {
	StationLocation *LocationView `json:"station_location"`
	POIs            []POIView     `json:"pois"`
}

// Health describes the served snapshot.
type Health struct {
	Status       string    `json:"status"`
	SnapshotID   string    `json:"snapshot_id"`
	LoadedAt     time.Time `json:"loaded_at"`
	Stations     int       `json:"stations"`
	Transactions int       `json:"transactions"`
	Missing      []string  `json:"missing_tables,omitempty"`
}

// dataset is everything derived from one snapshot. It is never mutated
// after it is published.
type dataset struct {
	snap   *repository.Snapshot
	flows  map[int]*flow.Table
	day    *flow.Day
	scaler scoring.Scaler
}

// Query answers read requests from the current snapshot. Reload swaps the
// snapshot atomically; callers already holding the old one finish on it.
type Query struct {
	load      SnapshotLoader
	date      string
	width     int
	cacheSize int
	logger    logger.Logger

	current atomic.Pointer[dataset]
	cache   gcache.Cache
}

// QueryOption configures a Query.
type QueryOption func(*Query)

// WithReferenceDate sets the served calendar day (YYYY-MM-DD).
func WithReferenceDate(date string) QueryOption {
	return func(q *Query) {
		if date != "" {
			q.date = date
		}
	}
}

// WithDefaultWidth sets the flow bucket width used when none is requested.
func WithDefaultWidth(width int) QueryOption {
	return func(q *Query) {
		if flow.SupportedWidth(width) {
			q.width = width
		}
	}
}

// WithCacheSize bounds the station analysis cache.
func WithCacheSize(n int) QueryOption {
	return func(q *Query) {
		if n > 0 {
			q.cacheSize = n
		}
	}
}

// NewQuery creates a Query and loads the first snapshot.
func NewQuery(ctx context.Context, load SnapshotLoader, opts ...QueryOption) (*Query, error) {
	q := &Query{
		load:      load,
		date:      "2018-09-01",
		width:     30,
		cacheSize: 512,
		logger:    logger.Named("query"),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.cache = gcache.New(q.cacheSize).LRU().Build()
	if err := q.Reload(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// Reload reads the tables again and publishes the new snapshot. On error the
// current snapshot keeps serving.
func (q *Query) Reload(ctx context.Context) error {
	snap, err := q.load(ctx)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	ds, err := q.build(snap)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	q.current.Store(ds)
	q.cache.Purge()
	metrics.RecordSnapshotReload(len(snap.Stations))

	q.logger.Info(ctx, "snapshot loaded",
		logger.String("snapshot_id", snap.ID),
		logger.Int("stations", len(snap.Stations)),
		logger.Int("scores", len(snap.Scores)),
		logger.Int("transactions", len(snap.Transactions)),
		logger.Int("day_records", ds.day.Len()),
		logger.Int("skipped_rows", snap.SkippedRows),
	)
	for _, path := range snap.Missing {
		q.logger.Warn(ctx, "table missing, serving it empty", logger.String("path", path))
	}
	return nil
}

func (q *Query) build(snap *repository.Snapshot) (*dataset, error) {
	ds := &dataset{snap: snap, flows: make(map[int]*flow.Table, 2)}
	for _, width := range []int{10, 30} {
		t, err := flow.Aggregate(snap.Transactions, q.date, width)
		if err != nil {
			return nil, err
		}
		ds.flows[width] = t
	}
	ds.day = flow.NewDay(snap.Transactions, q.date)

	vectors := make([]scoring.Vector, 0, len(snap.Scores))
	for _, sc := range snap.Scores {
		vectors = append(vectors, scoring.Vector(sc.Scores))
	}
	ds.scaler = scoring.NewScaler(vectors)
	return ds, nil
}

func (q *Query) data() *dataset { return q.current.Load() }

// SnapshotID returns the ID of the served snapshot.
func (q *Query) SnapshotID() string { return q.data().snap.ID }

// Health reports on the served snapshot.
func (q *Query) Health() Health {
	snap := q.data().snap
	return Health{
		Status:       "ok",
		SnapshotID:   snap.ID,
		LoadedAt:     snap.LoadedAt,
		Stations:     len(snap.Stations),
		Transactions: len(snap.Transactions),
		Missing:      snap.Missing,
	}
}

// Stations lists every station with coordinates.
func (q *Query) Stations(_ context.Context) []StationView {
	stations := q.data().snap.Stations
	out := make([]StationView, 0, len(stations))
	for _, st := range stations {
		out = append(out, StationView{Name: st.Name, Longitude: st.Location.Lon(), Latitude: st.Location.Lat()})
	}
	return out
}

// Flow returns the flow table for width minutes; zero selects the default.
func (q *Query) Flow(_ context.Context, width int) ([]model.FlowRow, error) {
	if width == 0 {
		width = q.width
	}
	t, ok := q.data().flows[width]
	if !ok {
		return nil, fmt.Errorf("width %d: %w", width, ErrInvalidArgument)
	}
	rows := t.Rows()
	if rows == nil {
		rows = []model.FlowRow{}
	}
	return rows, nil
}

// StationAnalysis returns the origin-destination summary of station for a
// dashboard time slot (0..23, or 24 for the whole day).
func (q *Query) StationAnalysis(_ context.Context, station string, slot int) (flow.Analysis, error) {
	station = strings.TrimSpace(station)
	if station == "" {
		return flow.Analysis{}, fmt.Errorf("station: %w", ErrInvalidArgument)
	}
	w, ok := flow.WindowForSlot(slot)
	if !ok {
		return flow.Analysis{}, fmt.Errorf("time_slot %d: %w", slot, ErrInvalidArgument)
	}

	ds := q.data()
	if !ds.day.Has(station) {
		return flow.Analysis{}, fmt.Errorf("%s: %w", station, ErrStationNotFound)
	}

	key := fmt.Sprintf("%s|%s|%d", ds.snap.ID, station, slot)
	if v, err := q.cache.Get(key); err == nil {
		if a, ok := v.(flow.Analysis); ok {
			metrics.RecordAnalysisCache(true)
			return a, nil
		}
	}
	metrics.RecordAnalysisCache(false)

	a := ds.day.Analyze(station, w)
	_ = q.cache.Set(key, a)
	return a, nil
}

// StationType returns the category scores of station.
func (q *Query) StationType(_ context.Context, station string) (StationTypeView, error) {
	station = strings.TrimSpace(station)
	if station == "" {
		return StationTypeView{}, fmt.Errorf("station: %w", ErrInvalidArgument)
	}
	ds := q.data()
	sc, ok := ds.snap.Scores[station]
	if !ok {
		return StationTypeView{}, fmt.Errorf("%s: %w", station, ErrStationNotFound)
	}
	scaled := ds.scaler.Scale(scoring.Vector(sc.Scores))
	return StationTypeView{
		Categories: poi.Names(),
		Values:     append([]float64(nil), scaled[:]...),
		RawValues:  append([]float64(nil), sc.Scores[:]...),
	}, nil
}

// StationPOIs returns the POIs collected around station with their distance
// from it.
func (q *Query) StationPOIs(_ context.Context, station string) (StationPOIsView, error) {
	station = strings.TrimSpace(station)
	if station == "" {
		return StationPOIsView{}, fmt.Errorf("station: %w", ErrInvalidArgument)
	}
	ds := q.data()
	row, ok := ds.snap.POIs[station]
	if !ok {
		return StationPOIsView{}, fmt.Errorf("%s: %w", station, ErrStationNotFound)
	}

	view := StationPOIsView{POIs: make([]POIView, 0, len(row.POIs))}
	st, err := ds.snap.Station(station)
	if err == nil && st.HasLocation() {
		view.StationLocation = &LocationView{Lon: st.Location.Lon(), Lat: st.Location.Lat()}
	}
	for _, p := range row.POIs {
		pv := POIView{
			Name:         p.Name,
			Type:         p.Category,
			TypeName:     poi.Category(p.Category).String(),
			OriginalType: p.OriginalType,
			Location:     LocationView{Lon: p.Location.Lon(), Lat: p.Location.Lat()},
		}
		if view.StationLocation != nil {
			d := coord.DistanceMeters(*st.Location, p.Location)
			pv.DistanceM = &d
		}
		view.POIs = append(view.POIs, pv)
	}
	return view, nil
}
