package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

const feed = `HEADER
M|Juan|c1|7|42K|M-Elite|02:30:00||||3:33
F|Ana|c2|8|42K|F-Elite|02:45:00||||3:54
M|Luis|c3|9|21K|M-Libre|01:20:00||||3:47
`

func config() ([]racecheck.Modality, []racecheck.Gender) {
	return []racecheck.Modality{
			{Name: "42K", Categories: []racecheck.Category{
				{Name: "Elite Masc", MatchsWith: "M-Elite"},
				{Name: "Elite Fem", MatchsWith: "F-Elite"},
			}},
			{Name: "21K", Categories: []racecheck.Category{{Name: "Libre", MatchsWith: "M-Libre"}}},
		}, []racecheck.Gender{
			{Name: "Masculino", MatchsWith: "M"},
			{Name: "Femenino", MatchsWith: "F"},
		}
}

func TestWriteXLSX(t *testing.T) {
	Convey("Given a ranked feed", t, func() {
		mods, gens := config()
		res := racecheck.Classify(feed, mods, gens)
		ranked := ranking.Rank(res.Valid, mods, gens)

		var buf bytes.Buffer
		So(WriteXLSX(&buf, mods, ranked), ShouldBeNil)

		f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
		So(err, ShouldBeNil)
		defer f.Close()

		Convey("Then there is one sheet per modality", func() {
			So(f.GetSheetList(), ShouldResemble, []string{"42K", "21K"})
		})

		Convey("Then rows follow overall position", func() {
			rows, err := f.GetRows("42K")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 3)
			So(rows[0], ShouldResemble, Header)
			So(rows[1], ShouldResemble, []string{"1", "1", "1", "7", "Juan", "Elite Masc", "Masculino", "02:30:00", "3:33"})
			So(rows[2], ShouldResemble, []string{"2", "1", "1", "8", "Ana", "Elite Fem", "Femenino", "02:45:00", "3:54"})

			rows, err = f.GetRows("21K")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(rows[1][4], ShouldEqual, "Luis")
		})
	})

	Convey("Given no modalities", t, func() {
		var buf bytes.Buffer
		So(WriteXLSX(&buf, nil, nil), ShouldBeNil)

		f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
		So(err, ShouldBeNil)
		defer f.Close()

		Convey("Then a single header-only sheet is written", func() {
			So(f.GetSheetList(), ShouldResemble, []string{"Results"})
			rows, err := f.GetRows("Results")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 1)
		})
	})
}

func TestSheetNames(t *testing.T) {
	Convey("Given awkward modality names", t, func() {
		names := sheetNames([]racecheck.Modality{
			{Name: "10K/Open"},
			{Name: "10K:Open"},
			{Name: ""},
			{Name: "Sheet1"},
			{Name: "A very long modality name that exceeds the limit"},
		})

		Convey("Then they become unique valid sheet names", func() {
			So(names[0], ShouldEqual, "10K-Open")
			So(names[1], ShouldEqual, "10K-Open (2)")
			So(names[2], ShouldEqual, "Modality 3")
			So(names[3], ShouldEqual, "Modality 4")
			So(len([]rune(names[4])), ShouldBeLessThanOrEqualTo, 31)
		})
	})
}

func TestRow(t *testing.T) {
	Convey("Given a runner without category or gender positions", t, func() {
		rr := ranking.RankedRunner{Runner: racecheck.Runner{Sex: "X", Dorsal: "5", Name: "Eva", Time: "01:00:00"}, PosGeneral: 4}

		Convey("Then blank cells are used and the raw sex is shown", func() {
			row := Row(rr)
			So(row[0], ShouldEqual, 4)
			So(row[1], ShouldEqual, "")
			So(row[2], ShouldEqual, "")
			So(row[6], ShouldEqual, "X")
		})
	})
}
