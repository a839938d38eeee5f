package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/metroflow/internal/adapters/amap"
	"github.com/okian/metroflow/internal/adapters/mq/queue"
	"github.com/okian/metroflow/internal/adapters/mq/worker"
	"github.com/okian/metroflow/internal/domain/coord"
	"github.com/okian/metroflow/internal/domain/dedupe"
	"github.com/okian/metroflow/internal/domain/model"
	"github.com/okian/metroflow/internal/domain/poi"
	"github.com/okian/metroflow/internal/domain/scoring"
	"github.com/okian/metroflow/pkg/logger"
	"github.com/okian/metroflow/pkg/metrics"
)

// Skip reasons reported in metrics and the run report.
const (
	skipMissingCoordinates = "missing_coordinates"
	skipCompleted          = "already_completed"
	skipDuplicate          = "duplicate"
)

// POIFetcher fetches one page of a nearby search.
type POIFetcher interface {
	Around(ctx context.Context, req amap.AroundRequest) ([]amap.POI, error)
}

// ScoreStore persists collected stations and knows which are complete.
type ScoreStore interface {
	Completed(ctx context.Context) []string
	IsCompleted(ctx context.Context, station string) bool
	Commit(ctx context.Context, score model.StationScore, pois model.StationPOIs) error
}

// RunReport summarizes one collection run.
type RunReport struct {
	RunID              string
	Stations           int
	Processed          int
	Skipped            int
	Failed             int
	Interrupted        int
	MissingCoordinates int
	Duration           time.Duration
}

// Collector queries the POI provider around each station, scores the
// results and commits one station at a time.
type Collector struct {
	fetcher  POIFetcher
	store    ScoreStore
	scorer   *scoring.Scorer
	groups   []poi.SearchGroup
	radius   int
	pageSize int
	delay    time.Duration
	workers  int
	logger   logger.Logger

	mu     sync.Mutex
	report RunReport
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithClassifier sets the weight and category tables.
func WithClassifier(c *poi.Classifier) CollectorOption {
	return func(col *Collector) {
		if c != nil {
			col.scorer = scoring.NewScorer(c)
		}
	}
}

// WithSearchGroups overrides the per-category type filters.
func WithSearchGroups(groups []poi.SearchGroup) CollectorOption {
	return func(c *Collector) {
		if len(groups) > 0 {
			c.groups = groups
		}
	}
}

// WithSearch sets the search radius in meters and the page size.
func WithSearch(radius, pageSize int) CollectorOption {
	return func(c *Collector) {
		if radius > 0 {
			c.radius = radius
		}
		if pageSize > 0 {
			c.pageSize = pageSize
		}
	}
}

// WithGroupDelay sets the pause after each category-group query.
func WithGroupDelay(d time.Duration) CollectorOption {
	return func(c *Collector) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithCollectorWorkers sets how many stations are collected concurrently.
func WithCollectorWorkers(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithCollectorLogger sets the logger.
func WithCollectorLogger(l logger.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCollector creates a Collector with the default tables.
func NewCollector(fetcher POIFetcher, store ScoreStore, opts ...CollectorOption) *Collector {
	c := &Collector{
		fetcher:  fetcher,
		store:    store,
		scorer:   scoring.NewScorer(poi.NewClassifier(nil, nil)),
		groups:   poi.DefaultSearchGroups(),
		radius:   300,
		pageSize: 25,
		delay:    100 * time.Millisecond,
		workers:  1,
		logger:   logger.Named("collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run collects every station that is not yet complete. It returns when all
// stations are done or ctx is cancelled; stations finished before the
// cancellation stay committed.
func (c *Collector) Run(ctx context.Context, stations []model.Station) (RunReport, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return RunReport{Stations: len(stations)}, fmt.Errorf("collection not started: %w", err)
	}
	c.mu.Lock()
	c.report = RunReport{RunID: uuid.NewString(), Stations: len(stations)}
	runID := c.report.RunID
	c.mu.Unlock()

	log := c.logger
	completed := c.store.Completed(ctx)
	seen := dedupe.NewInMemoryDeduper(dedupe.WithSeen(completed...))
	log.Info(ctx, "collection started",
		logger.String("run_id", runID),
		logger.Int("stations", len(stations)),
		logger.Int("completed", len(completed)),
		logger.Int("workers", c.workers),
	)

	q := queue.NewInMemoryQueue(queue.WithCapacity(len(stations) + 1))
	for i, st := range stations {
		switch {
		case !st.HasLocation():
			c.count(func(r *RunReport) { r.MissingCoordinates++ })
			metrics.RecordStationSkipped(skipMissingCoordinates)
			log.Warn(ctx, "station has no coordinates", logger.String("station", st.Name))
		case seen.SeenAndRecord(ctx, st.Name):
			reason := skipDuplicate
			if c.store.IsCompleted(ctx, st.Name) {
				reason = skipCompleted
			}
			c.count(func(r *RunReport) { r.Skipped++ })
			metrics.RecordStationSkipped(reason)
			log.Debug(ctx, "skipping station", logger.String("station", st.Name), logger.String("reason", reason))
		case !q.Enqueue(ctx, queue.Job{Index: i, Station: st}):
			seen.Unrecord(ctx, st.Name)
			return c.finish(start), fmt.Errorf("enqueue %s: queue rejected job", st.Name)
		}
	}
	_ = q.Close()

	pool := worker.NewPool(c.workers, q, c, c)
	pool.Start(ctx)
	pool.Wait()

	report := c.finish(start)
	log.Info(ctx, "collection finished",
		logger.Int("processed", report.Processed),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed),
		logger.Int("interrupted", report.Interrupted),
		logger.Int("missing_coordinates", report.MissingCoordinates),
		logger.Duration("took", report.Duration),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("collection interrupted: %w", err)
	}
	return report, nil
}

func (c *Collector) finish(start time.Time) RunReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Duration = time.Since(start)
	return c.report
}

func (c *Collector) count(fn func(*RunReport)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.report)
}

// Process implements worker.Processor. A station completed since the run
// was planned is skipped.
func (c *Collector) Process(ctx context.Context, job worker.Job) (worker.Result, error) {
	if c.store.IsCompleted(ctx, job.Station.Name) {
		return worker.Result{}, fmt.Errorf("%s: %w", job.Station.Name, worker.ErrSkip)
	}
	score, pois, err := c.CollectStation(ctx, job.Station)
	if err != nil {
		return worker.Result{}, err
	}
	return worker.Result{Score: score, POIs: pois}, nil
}

// Commit implements worker.Sink.
func (c *Collector) Commit(ctx context.Context, _ worker.Job, res worker.Result) error {
	if err := c.store.Commit(ctx, res.Score, res.POIs); err != nil {
		return err
	}
	c.count(func(r *RunReport) { r.Processed++ })
	c.logger.Info(ctx, "station saved",
		logger.String("station", res.Score.Station),
		logger.Int("dominant", res.Score.Dominant),
		logger.Int("pois", len(res.POIs.POIs)),
	)
	return nil
}

// Skipped implements worker.Observer.
func (c *Collector) Skipped(_ context.Context, _ worker.Job) {
	c.count(func(r *RunReport) { r.Skipped++ })
	metrics.RecordStationSkipped(skipCompleted)
}

// Failed implements worker.Observer.
func (c *Collector) Failed(_ context.Context, _ worker.Job, _ error) {
	c.count(func(r *RunReport) { r.Failed++ })
}

// Interrupted implements worker.Observer.
func (c *Collector) Interrupted(_ context.Context, _ worker.Job) {
	c.count(func(r *RunReport) { r.Interrupted++ })
}

// CollectStation queries every category group around one station and
// returns its score row and POI row.
func (c *Collector) CollectStation(ctx context.Context, st model.Station) (model.StationScore, model.StationPOIs, error) {
	if !st.HasLocation() {
		return model.StationScore{}, model.StationPOIs{}, fmt.Errorf("station %s: %w", st.Name, ErrMissingCoordinates)
	}

	var vec scoring.Vector
	records := []model.POIRecord{}
	for _, g := range c.groups {
		accepted, err := c.collectGroup(ctx, st, g, &vec, &records)
		if err != nil {
			return model.StationScore{}, model.StationPOIs{}, err
		}
		c.logger.Debug(ctx, "group done",
			logger.String("station", st.Name),
			logger.String("category", g.Category.String()),
			logger.Int("pois", accepted),
		)
		if err := sleepCtx(ctx, c.delay); err != nil {
			return model.StationScore{}, model.StationPOIs{}, err
		}
	}

	return model.StationScore{
			Station:  st.Name,
			Dominant: int(vec.Dominant()),
			Scores:   vec,
		}, model.StationPOIs{
			Station: st.Name,
			POIs:    records,
		}, nil
}

// collectGroup pages through one category group. Paging stops at an empty
// page, a short page or a failed call; a failed call is logged and ends only
// this group. Only cancellation is returned as an error.
func (c *Collector) collectGroup(ctx context.Context, st model.Station, g poi.SearchGroup, vec *scoring.Vector, records *[]model.POIRecord) (int, error) {
	groupLabel := g.Category.String()
	accepted := 0
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}

		started := time.Now()
		pois, err := c.fetcher.Around(ctx, amap.AroundRequest{
			Location: *st.Location,
			Radius:   c.radius,
			PageSize: c.pageSize,
			Page:     page,
			Types:    g.Types,
		})
		latency := float64(time.Since(started).Milliseconds())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return accepted, ctxErr
			}
			metrics.RecordPOIRequest(groupLabel, "error", latency)
			c.logger.Warn(ctx, "nearby search failed",
				logger.String("station", st.Name),
				logger.String("category", groupLabel),
				logger.Int("page", page),
				logger.Error(err),
			)
			return accepted, nil
		}
		metrics.RecordPOIRequest(groupLabel, "ok", latency)

		if len(pois) == 0 {
			return accepted, nil
		}
		for _, p := range pois {
			if c.accept(ctx, st, g, p, vec, records) {
				accepted++
			}
		}
		if len(pois) < c.pageSize {
			return accepted, nil
		}
	}
}

func (c *Collector) accept(ctx context.Context, st model.Station, g poi.SearchGroup, p amap.POI, vec *scoring.Vector, records *[]model.POIRecord) bool {
	code := string(p.TypeCode)
	cat, w, ok := c.scorer.Score(code, g.Category)
	if !ok {
		return false
	}
	loc, err := p.Point()
	if err != nil {
		c.logger.Debug(ctx, "dropping poi with bad location",
			logger.String("station", st.Name),
			logger.String("poi", string(p.Name)),
			logger.Error(err),
		)
		return false
	}
	vec.Add(cat, w)
	*records = append(*records, model.POIRecord{
		Name:         string(p.Name),
		Location:     coord.GCJ02ToWGS84(loc),
		Category:     int(cat),
		OriginalType: code,
	})
	metrics.RecordPOIAccepted(cat.String())
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ worker.Observer = (*Collector)(nil)
