package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/metroflow/internal/adapters/amap"
	"github.com/okian/metroflow/internal/adapters/repository"
	service "github.com/okian/metroflow/internal/app"
	"github.com/okian/metroflow/internal/domain/model"
	"github.com/okian/metroflow/internal/domain/poi"
	"github.com/okian/metroflow/pkg/logger"
	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type pageKey struct {
	types string
	page  int
}

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[pageKey][]amap.POI
	errs   map[pageKey]error
	calls  []amap.AroundRequest
	onCall func(amap.AroundRequest)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[pageKey][]amap.POI), errs: make(map[pageKey]error)}
}

func (f *fakeFetcher) Around(ctx context.Context, req amap.AroundRequest) ([]amap.POI, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	key := pageKey{types: req.Types, page: req.Page}
	pois, err := f.pages[key], f.errs[key]
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(req)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return pois, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fakePOI(name, code, loc string) amap.POI {
	return amap.POI{Name: amap.FlexibleString(name), TypeCode: amap.FlexibleString(code), Location: amap.FlexibleString(loc)}
}

func station(name string, lon, lat float64) model.Station {
	return model.Station{Name: name, Location: &orb.Point{lon, lat}}
}

func openStore(dir string) *repository.CollectionStore {
	store, err := repository.OpenCollectionStore(filepath.Join(dir, "station_type.csv"), filepath.Join(dir, "station_around.csv"))
	So(err, ShouldBeNil)
	return store
}

var (
	hospitalGroup = poi.SearchGroup{Category: poi.Hospital, Types: "090100|090200"}
	transitGroup  = poi.SearchGroup{Category: poi.Transportation, Types: "150104|150200|150400"}
)

func TestCollector_CollectStation(t *testing.T) {
	Convey("Given a collector with a page size of two", t, func() {
		fetcher := newFakeFetcher()
		col := service.NewCollector(fetcher, nil,
			service.WithSearchGroups([]poi.SearchGroup{hospitalGroup, transitGroup}),
			service.WithSearch(300, 2),
			service.WithGroupDelay(time.Millisecond),
		)
		st := station("Futian", 114.0579, 22.5431)

		Convey("When a full page is followed by an empty one", func() {
			fetcher.pages[pageKey{hospitalGroup.Types, 1}] = []amap.POI{
				fakePOI("General Hospital", "090100", "114.0580,22.5432"),
				fakePOI("Pharmacy", "090601", "114.0581,22.5433"),
			}
			score, pois, err := col.CollectStation(context.Background(), st)

			Convey("Then paging stops after the empty page", func() {
				So(err, ShouldBeNil)
				hospitalCalls := 0
				for _, c := range fetcher.calls {
					if c.Types == hospitalGroup.Types {
						hospitalCalls++
					}
				}
				So(hospitalCalls, ShouldEqual, 2)
			})

			Convey("Then only weighted POIs count", func() {
				So(score.Station, ShouldEqual, "Futian")
				So(score.Scores[poi.Hospital-1], ShouldEqual, 6)
				So(score.Dominant, ShouldEqual, int(poi.Hospital))
				So(pois.POIs, ShouldHaveLength, 1)
				So(pois.POIs[0].Name, ShouldEqual, "General Hospital")
				So(pois.POIs[0].Category, ShouldEqual, int(poi.Hospital))
				So(pois.POIs[0].OriginalType, ShouldEqual, "090100")
			})

			Convey("Then POI locations are converted out of GCJ-02", func() {
				So(pois.POIs[0].Location[0], ShouldNotEqual, 114.0580)
				So(pois.POIs[0].Location[0], ShouldAlmostEqual, 114.0580, 0.01)
			})
		})

		Convey("When a short page is returned", func() {
			fetcher.pages[pageKey{transitGroup.Types, 1}] = []amap.POI{
				fakePOI("Bus Stop", "150200", "114.0582,22.5434"),
			}
			score, _, err := col.CollectStation(context.Background(), st)

			Convey("Then no further page is requested", func() {
				So(err, ShouldBeNil)
				transitCalls := 0
				for _, c := range fetcher.calls {
					if c.Types == transitGroup.Types {
						transitCalls++
					}
				}
				So(transitCalls, ShouldEqual, 1)
				So(score.Dominant, ShouldEqual, int(poi.Transportation))
				So(score.Scores[poi.Transportation-1], ShouldEqual, 50)
			})
		})

		Convey("When one group fails upstream", func() {
			fetcher.errs[pageKey{hospitalGroup.Types, 1}] = fmt.Errorf("boom: %w", amap.ErrUpstream)
			fetcher.pages[pageKey{transitGroup.Types, 1}] = []amap.POI{
				fakePOI("Bus Stop", "150200", "114.0582,22.5434"),
			}
			score, pois, err := col.CollectStation(context.Background(), st)

			Convey("Then the remaining groups are still collected", func() {
				So(err, ShouldBeNil)
				So(score.Scores[poi.Hospital-1], ShouldEqual, 0)
				So(score.Scores[poi.Transportation-1], ShouldEqual, 50)
				So(pois.POIs, ShouldHaveLength, 1)
			})
		})

		Convey("When a POI has an unparseable location", func() {
			fetcher.pages[pageKey{hospitalGroup.Types, 1}] = []amap.POI{
				fakePOI("Clinic", "090200", "nowhere"),
			}
			score, pois, err := col.CollectStation(context.Background(), st)

			Convey("Then it contributes nothing", func() {
				So(err, ShouldBeNil)
				So(pois.POIs, ShouldBeEmpty)
				So(score.Dominant, ShouldEqual, int(poi.None))
			})
		})

		Convey("When the station has no coordinates", func() {
			_, _, err := col.CollectStation(context.Background(), model.Station{Name: "Nowhere"})

			Convey("Then it is rejected without querying", func() {
				So(errors.Is(err, service.ErrMissingCoordinates), ShouldBeTrue)
				So(fetcher.callCount(), ShouldEqual, 0)
			})
		})
	})
}

func TestCollector_Run(t *testing.T) {
	Convey("Given a collector backed by file tables", t, func() {
		dir := t.TempDir()
		fetcher := newFakeFetcher()
		fetcher.pages[pageKey{hospitalGroup.Types, 1}] = []amap.POI{
			fakePOI("General Hospital", "090100", "114.0580,22.5432"),
		}
		opts := []service.CollectorOption{
			service.WithSearchGroups([]poi.SearchGroup{hospitalGroup}),
			service.WithSearch(300, 25),
			service.WithGroupDelay(time.Millisecond),
		}
		stations := []model.Station{
			station("Futian", 114.0579, 22.5431),
			{Name: "Lost"},
			station("Futian", 114.0579, 22.5431),
			station("Luohu", 114.1181, 22.5318),
		}

		Convey("When a run completes", func() {
			store := openStore(dir)
			report, err := service.NewCollector(fetcher, store, opts...).Run(context.Background(), stations)

			Convey("Then every located station is committed once", func() {
				So(err, ShouldBeNil)
				So(report.RunID, ShouldNotBeEmpty)
				So(report.Stations, ShouldEqual, 4)
				So(report.Processed, ShouldEqual, 2)
				So(report.MissingCoordinates, ShouldEqual, 1)
				So(report.Skipped, ShouldEqual, 1)
				So(store.Completed(context.Background()), ShouldResemble, []string{"Futian", "Luohu"})
				So(fetcher.callCount(), ShouldEqual, 2)
			})

			Convey("Then a second run queries nothing", func() {
				again := newFakeFetcher()
				reopened := openStore(dir)
				report, err := service.NewCollector(again, reopened, opts...).Run(context.Background(), stations)
				So(err, ShouldBeNil)
				So(again.callCount(), ShouldEqual, 0)
				So(report.Processed, ShouldEqual, 0)
				So(report.Skipped, ShouldEqual, 3)

				scores, err := repository.ReadScores(filepath.Join(dir, "station_type.csv"))
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 2)
				So(scores[0].Scores[poi.Hospital-1], ShouldEqual, 6)
			})
		})

		Convey("When the run is cancelled mid-station", func() {
			store := openStore(dir)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			fetcher.onCall = func(amap.AroundRequest) { cancel() }

			report, err := service.NewCollector(fetcher, store, opts...).Run(ctx, stations)

			Convey("Then nothing partial is written", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(report.Processed, ShouldEqual, 0)
				So(report.Interrupted, ShouldEqual, 1)
				So(store.Completed(context.Background()), ShouldBeEmpty)
			})
		})

		Convey("When the context is already cancelled", func() {
			store := openStore(dir)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := service.NewCollector(fetcher, store, opts...).Run(ctx, stations)

			Convey("Then no station is dispatched", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(fetcher.callCount(), ShouldEqual, 0)
			})
		})
	})
}
