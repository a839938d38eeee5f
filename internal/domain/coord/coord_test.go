package coord_test

import (
	"testing"

	"github.com/okian/metroflow/internal/domain/coord"
	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"
)

const tolerance = 1e-6

func TestGCJ02ToWGS84(t *testing.T) {
	Convey("Given known GCJ-02 coordinates", t, func() {
		cases := []struct {
			name string
			in   orb.Point
			want orb.Point
		}{
			{"Futian", orb.Point{114.057868, 22.543099}, orb.Point{114.05275403889728, 22.54581624221621}},
			{"Nanshan", orb.Point{113.9213, 22.5329}, orb.Point{113.9164401338834, 22.535945540002736}},
			{"Beijing", orb.Point{116.397128, 39.916527}, orb.Point{116.39088350597522, 39.91512325075406}},
		}

		for _, c := range cases {
			Convey("Then "+c.name+" matches the golden vector", func() {
				got := coord.GCJ02ToWGS84(c.in)
				So(got.Lon(), ShouldAlmostEqual, c.want.Lon(), tolerance)
				So(got.Lat(), ShouldAlmostEqual, c.want.Lat(), tolerance)
			})
		}
	})

	Convey("Given a missing coordinate", t, func() {
		So(coord.ToStandardDatum(nil), ShouldBeNil)
	})

	Convey("Given a present coordinate", t, func() {
		in := orb.Point{114.057868, 22.543099}
		out := coord.ToStandardDatum(&in)
		So(out, ShouldNotBeNil)
		So(out.Lon(), ShouldAlmostEqual, 114.05275403889728, tolerance)
		So(in.Lon(), ShouldEqual, 114.057868)
	})
}

func TestDistanceMeters(t *testing.T) {
	Convey("Given two points one degree apart on the equator", t, func() {
		d := coord.DistanceMeters(orb.Point{0, 0}, orb.Point{1, 0})
		So(d, ShouldAlmostEqual, 111195.08, 1)
	})

	Convey("Given identical points", t, func() {
		p := orb.Point{114.05, 22.54}
		So(coord.DistanceMeters(p, p), ShouldAlmostEqual, 0, 1e-9)
	})
}
