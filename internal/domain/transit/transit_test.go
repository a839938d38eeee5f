package transit_test

import (
	"errors"
	"testing"

	"github.com/okian/metroflow/internal/domain/model"
	"github.com/okian/metroflow/internal/domain/transit"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseLine(t *testing.T) {
	Convey("Given subway line names", t, func() {
		Convey("Chinese numerals are mapped", func() {
			So(transit.ParseLine("地铁十三号线"), ShouldResemble, model.LineID{Number: 13, Numeric: true})
			So(transit.ParseLine("地铁一号线"), ShouldResemble, model.LineID{Number: 1, Numeric: true})
			So(transit.ParseLine("深圳地铁二十号线"), ShouldResemble, model.LineID{Number: 20, Numeric: true})
		})

		Convey("Arabic numerals are parsed", func() {
			So(transit.ParseLine("地铁3号线"), ShouldResemble, model.LineID{Number: 3, Numeric: true})
			So(transit.ParseLine("地铁11号线"), ShouldResemble, model.LineID{Number: 11, Numeric: true})
		})

		Convey("Numerals outside the table pass through as text", func() {
			id := transit.ParseLine("地铁二十一号线")
			So(id.Numeric, ShouldBeFalse)
			So(id.String(), ShouldEqual, "二十一")
		})

		Convey("Unrecognized names are returned unchanged", func() {
			id := transit.ParseLine("巴士集团")
			So(id.Numeric, ShouldBeFalse)
			So(id.String(), ShouldEqual, "巴士集团")
		})
	})
}

func TestParseDirection(t *testing.T) {
	Convey("Given transaction type texts", t, func() {
		dir, known := transit.ParseDirection("地铁入站")
		So(dir, ShouldEqual, model.Entry)
		So(known, ShouldBeTrue)

		dir, known = transit.ParseDirection("地铁出站")
		So(dir, ShouldEqual, model.Exit)
		So(known, ShouldBeTrue)

		Convey("Other texts fall back to exit and are flagged", func() {
			dir, known := transit.ParseDirection("地铁补票")
			So(dir, ShouldEqual, model.Exit)
			So(known, ShouldBeFalse)
		})
	})
}

func TestDecodeLine(t *testing.T) {
	Convey("Given a raw export line with subway and bus entries", t, func() {
		line := []byte(`{"data":[
			{"deal_date":"2018-09-01 07:05:12","deal_type":"地铁入站","company_name":"地铁五号线","station":"布吉","card_no":"FFA1"},
			{"deal_date":"2018-09-01 07:06:00","deal_type":"巴士","company_name":"巴士集团","station":"","card_no":"FFA2"},
			{"deal_date":"2018-09-01","deal_type":"地铁出站","company_name":"地铁3号线","station":"老街","card_no":123456}
		]}`)

		rows, skipped, err := transit.DecodeLine(line)

		Convey("Then only subway rows are kept", func() {
			So(err, ShouldBeNil)
			So(skipped, ShouldEqual, 1)
			So(len(rows), ShouldEqual, 2)
			So(rows[0], ShouldResemble, model.Transaction{
				Date: "2018-09-01", Time: "07:05:12", Line: "地铁五号线",
				TypeText: "地铁入站", Station: "布吉", CardNo: "FFA1",
			})
		})

		Convey("Then a date without a time keeps an empty time", func() {
			So(rows[1].Date, ShouldEqual, "2018-09-01")
			So(rows[1].Time, ShouldEqual, "")
			So(rows[1].CardNo, ShouldEqual, "123456")
		})
	})

	Convey("Given an unparseable line", t, func() {
		_, _, err := transit.DecodeLine([]byte(`{"data":[`))
		So(errors.Is(err, transit.ErrMalformed), ShouldBeTrue)
	})
}

func TestNormalize(t *testing.T) {
	Convey("Normalizing fills line number and direction", t, func() {
		tx := model.Transaction{Line: "地铁五号线", TypeText: "地铁入站", Station: "布吉"}
		n, known := transit.Normalize(tx)
		So(known, ShouldBeTrue)
		So(n.LineNumber.String(), ShouldEqual, "5")
		So(n.Direction, ShouldEqual, model.Entry)
		So(n.Station, ShouldEqual, "布吉")
	})
}
