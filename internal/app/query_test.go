package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/okian/metroflow/internal/adapters/repository"
	service "github.com/okian/metroflow/internal/app"
	"github.com/okian/metroflow/internal/domain/model"
	"github.com/okian/metroflow/internal/domain/transit"
	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"
)

type fixture struct {
	paths repository.SnapshotPaths
}

func ride(date, tm, typ, station, card string) model.NormalizedTransaction {
	n, _ := transit.Normalize(model.Transaction{
		Date: date, Time: tm, Line: "地铁1号线", TypeText: typ, Station: station, CardNo: card,
	})
	return n
}

func writeFixture(dir string) fixture {
	f := fixture{paths: repository.SnapshotPaths{
		Stations:   filepath.Join(dir, "station_coordinates.csv"),
		Scores:     filepath.Join(dir, "station_type.csv"),
		POIs:       filepath.Join(dir, "station_around.csv"),
		Normalized: filepath.Join(dir, "output_transformed.csv"),
	}}

	futian := orb.Point{114.0550, 22.5400}
	luohu := orb.Point{114.1181, 22.5318}
	So(repository.WriteStations(f.paths.Stations, []model.Station{
		{Name: "Futian", Location: &futian},
		{Name: "Luohu", Location: &luohu},
		{Name: "Lost"},
	}), ShouldBeNil)

	store, err := repository.OpenCollectionStore(f.paths.Scores, f.paths.POIs)
	So(err, ShouldBeNil)
	ctx := context.Background()
	So(store.Commit(ctx,
		model.StationScore{Station: "Futian", Dominant: 6, Scores: [7]float64{6, 0, 0, 0, 0, 50, 0}},
		model.StationPOIs{Station: "Futian", POIs: []model.POIRecord{
			{Name: "General Hospital", Location: orb.Point{114.0550, 22.5409}, Category: 1, OriginalType: "090100"},
		}},
	), ShouldBeNil)
	So(store.Commit(ctx,
		model.StationScore{Station: "Ghost", Dominant: 3, Scores: [7]float64{0, 0, 10, 0, 0, 0, 0}},
		model.StationPOIs{Station: "Ghost", POIs: []model.POIRecord{
			{Name: "Mall", Location: orb.Point{114.1, 22.5}, Category: 3, OriginalType: "060100"},
		}},
	), ShouldBeNil)

	w, err := repository.NewNormalizedWriter(f.paths.Normalized)
	So(err, ShouldBeNil)
	for _, tx := range []model.NormalizedTransaction{
		ride("2018-09-01", "07:20:00", "地铁入站", "Futian", "C1"),
		ride("2018-09-01", "08:10:00", "地铁出站", "Luohu", "C1"),
		ride("2018-09-01", "07:40:00", "地铁入站", "Futian", "C2"),
		ride("2018-09-01", "09:00:00", "地铁出站", "Chegongmiao", "C2"),
		ride("2018-09-01", "10:00:00", "地铁入站", "Luohu", "C3"),
		ride("2018-09-01", "10:30:00", "地铁出站", "Futian", "C3"),
		ride("2018-09-02", "07:20:00", "地铁入站", "Futian", "C9"),
	} {
		So(w.Write(repository.NormalizedRow(tx)), ShouldBeNil)
	}
	So(w.Commit(), ShouldBeNil)
	return f
}

func (f fixture) loader() service.SnapshotLoader {
	return func(ctx context.Context) (*repository.Snapshot, error) {
		return repository.LoadSnapshot(ctx, f.paths)
	}
}

func TestQuery(t *testing.T) {
	Convey("Given a query over a small dataset", t, func() {
		ctx := context.Background()
		f := writeFixture(t.TempDir())
		q, err := service.NewQuery(ctx, f.loader(), service.WithReferenceDate("2018-09-01"))
		So(err, ShouldBeNil)

		Convey("Stations lists only located stations", func() {
			got := q.Stations(ctx)
			So(got, ShouldResemble, []service.StationView{
				{Name: "Futian", Longitude: 114.0550, Latitude: 22.5400},
				{Name: "Luohu", Longitude: 114.1181, Latitude: 22.5318},
			})
		})

		Convey("Flow buckets the reference date", func() {
			rows, err := q.Flow(ctx, 0)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 6)
			So(rows[0], ShouldResemble, model.FlowRow{Interval: 14, Station: "Futian", Entries: 1, Exits: 0})

			rows, err = q.Flow(ctx, 10)
			So(err, ShouldBeNil)
			So(rows[0].Interval, ShouldEqual, 44)

			_, err = q.Flow(ctx, 15)
			So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("StationAnalysis over the whole day", func() {
			a, err := q.StationAnalysis(ctx, "Futian", 24)
			So(err, ShouldBeNil)
			So(a.TotalEntries, ShouldEqual, 2)
			So(a.TotalExits, ShouldEqual, 1)

			b, err := json.Marshal(a)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"station_name":"Futian","total_entries":2,"total_exits":1,`+
				`"entry_stations":{"top5":{"Luohu":1},"others":0},`+
				`"exit_stations":{"top5":{"Chegongmiao":1,"Luohu":1},"others":0}}`)

			again, err := q.StationAnalysis(ctx, "Futian", 24)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, a)
		})

		Convey("StationAnalysis for one half-hour slot", func() {
			a, err := q.StationAnalysis(ctx, "Futian", 7)
			So(err, ShouldBeNil)
			So(a.TotalEntries, ShouldEqual, 1)
			So(a.TotalExits, ShouldEqual, 0)
			b, err := json.Marshal(a.EntryStations)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"top5":{},"others":0}`)
		})

		Convey("StationAnalysis rejects bad input", func() {
			_, err := q.StationAnalysis(ctx, "Futian", 25)
			So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)
			_, err = q.StationAnalysis(ctx, "", 24)
			So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)
			_, err = q.StationAnalysis(ctx, "Nowhere", 24)
			So(errors.Is(err, service.ErrStationNotFound), ShouldBeTrue)
		})

		Convey("StationType scales against the whole dataset", func() {
			v, err := q.StationType(ctx, "Futian")
			So(err, ShouldBeNil)
			So(v.Categories, ShouldHaveLength, 7)
			So(v.Categories[0], ShouldEqual, "Hospital")
			So(v.RawValues, ShouldResemble, []float64{6, 0, 0, 0, 0, 50, 0})
			So(v.Values[5], ShouldAlmostEqual, 100, 1e-9)
			So(v.Values[0], ShouldAlmostEqual, math.Log1p(6)/math.Log1p(50)*100, 1e-9)
			So(v.Values[1], ShouldEqual, 0)

			_, err = q.StationType(ctx, "Luohu")
			So(errors.Is(err, service.ErrStationNotFound), ShouldBeTrue)
		})

		Convey("StationPOIs adds distances when the station is located", func() {
			v, err := q.StationPOIs(ctx, "Futian")
			So(err, ShouldBeNil)
			So(v.StationLocation, ShouldResemble, &service.LocationView{Lon: 114.0550, Lat: 22.5400})
			So(v.POIs, ShouldHaveLength, 1)
			So(v.POIs[0].Type, ShouldEqual, 1)
			So(v.POIs[0].OriginalType, ShouldEqual, "090100")
			So(v.POIs[0].DistanceM, ShouldNotBeNil)
			So(*v.POIs[0].DistanceM, ShouldAlmostEqual, 100.08, 0.5)

			ghost, err := q.StationPOIs(ctx, "Ghost")
			So(err, ShouldBeNil)
			So(ghost.StationLocation, ShouldBeNil)
			So(ghost.POIs[0].DistanceM, ShouldBeNil)

			_, err = q.StationPOIs(ctx, "Luohu")
			So(errors.Is(err, service.ErrStationNotFound), ShouldBeTrue)
		})

		Convey("Reload swaps the snapshot", func() {
			before := q.SnapshotID()
			So(repository.WriteStations(f.paths.Stations, nil), ShouldBeNil)

			So(q.Reload(ctx), ShouldBeNil)
			So(q.SnapshotID(), ShouldNotEqual, before)
			So(q.Stations(ctx), ShouldBeEmpty)
			So(q.Health().Stations, ShouldEqual, 0)
		})
	})

	Convey("Given a loader that fails", t, func() {
		ctx := context.Background()
		f := writeFixture(t.TempDir())
		fail := false
		load := func(ctx context.Context) (*repository.Snapshot, error) {
			if fail {
				return nil, errors.New("disk on fire")
			}
			return repository.LoadSnapshot(ctx, f.paths)
		}
		q, err := service.NewQuery(ctx, load)
		So(err, ShouldBeNil)
		id := q.SnapshotID()

		fail = true
		So(q.Reload(ctx), ShouldNotBeNil)
		So(q.SnapshotID(), ShouldEqual, id)
		So(q.Stations(ctx), ShouldHaveLength, 2)
	})
}
