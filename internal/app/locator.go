package service

import (
	"context"
	"time"

	"github.com/okian/metroflow/internal/adapters/amap"
	"github.com/okian/metroflow/internal/domain/model"
	"github.com/okian/metroflow/pkg/logger"
)

const (
	stationKeywordSuffix = "地铁站"
	subwayStationType    = "150500"
)

// TextSearcher runs a keyword place search.
type TextSearcher interface {
	TextSearch(ctx context.Context, keywords, city, types string) ([]amap.POI, error)
}

// LocateReport summarizes a locating run.
type LocateReport struct {
	Stations int
	Reused   int
	Found    int
	Missing  int
}

// Locator resolves GCJ-02 coordinates for station names.
type Locator struct {
	searcher TextSearcher
	city     string
	delay    time.Duration
	logger   logger.Logger
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithCity restricts searches to a city.
func WithCity(city string) LocatorOption {
	return func(l *Locator) { l.city = city }
}

// WithLookupDelay sets the pause after each upstream search.
func WithLookupDelay(d time.Duration) LocatorOption {
	return func(l *Locator) {
		if d > 0 {
			l.delay = d
		}
	}
}

// NewLocator creates a Locator.
func NewLocator(searcher TextSearcher, opts ...LocatorOption) *Locator {
	l := &Locator{
		searcher: searcher,
		delay:    100 * time.Millisecond,
		logger:   logger.Named("locator"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns one row per name, in order. Coordinates already known in
// existing are reused; the rest are searched as "<name>地铁站" and take the
// first hit. A failed or empty search leaves the row without coordinates.
func (l *Locator) Locate(ctx context.Context, names []string, existing []model.Station) ([]model.Station, LocateReport, error) {
	known := make(map[string]model.Station, len(existing))
	for _, st := range existing {
		if _, dup := known[st.Name]; !dup && st.HasLocation() {
			known[st.Name] = st
		}
	}

	rep := LocateReport{Stations: len(names)}
	out := make([]model.Station, 0, len(names))
	for _, name := range names {
		if st, ok := known[name]; ok {
			rep.Reused++
			out = append(out, st)
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, rep, err
		}

		st := model.Station{Name: name}
		pois, err := l.searcher.TextSearch(ctx, name+stationKeywordSuffix, l.city, subwayStationType)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return out, rep, ctx.Err()
			}
			l.logger.Warn(ctx, "station search failed", logger.String("station", name), logger.Error(err))
		case len(pois) == 0:
			l.logger.Warn(ctx, "station not found", logger.String("station", name))
		default:
			p, perr := pois[0].Point()
			if perr != nil {
				l.logger.Warn(ctx, "station has bad location", logger.String("station", name), logger.Error(perr))
				break
			}
			st.Location = &p
		}
		if st.HasLocation() {
			rep.Found++
		} else {
			rep.Missing++
		}
		out = append(out, st)

		if err := sleepCtx(ctx, l.delay); err != nil {
			return out, rep, err
		}
	}

	l.logger.Info(ctx, "stations located",
		logger.Int("stations", rep.Stations),
		logger.Int("reused", rep.Reused),
		logger.Int("found", rep.Found),
		logger.Int("missing", rep.Missing),
	)
	return out, rep, nil
}

// StationNames lists the distinct station names of a Transaction table in
// first-seen order.
func StationNames(ctx context.Context, txPath string) ([]string, error) {
	seen := make(map[string]struct{})
	var names []string
	err := scanTransactions(ctx, txPath, func(tx model.Transaction) {
		if tx.Station == "" {
			return
		}
		if _, ok := seen[tx.Station]; ok {
			return
		}
		seen[tx.Station] = struct{}{}
		names = append(names, tx.Station)
	})
	return names, err
}
