package types_test

import (
	"testing"

	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/internal/domain/ranking"
	"github.com/okian/racecheck/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

const feed = `HEADER
M|Juan|c1|7|42K|M-Elite|02:30:00
F|Ana|c2|8|42K|F-Elite|02:45:00
M|Luis|c3|9|21K|M-Libre|01:20:00
M|Raul|c4|10|21K|M-Veterano|01:10:00
X|Eva|c5|11|21K|M-Libre|01:15:00
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

func TestNewClassification(t *testing.T) {
	Convey("Given a feed with unmatched values", t, func() {
		mods, gens := config()
		c := types.NewClassification("e1", racecheck.Classify(feed, mods, gens), mods, gens)

		Convey("Then totals and missing values are reported", func() {
			So(c.EventID, ShouldEqual, "e1")
			So(c.Total, ShouldEqual, 5)
			So(c.Valid, ShouldHaveLength, 3)
			So(c.Invalid, ShouldHaveLength, 2)
			So(c.MissingCategories, ShouldResemble, []string{"M-Veterano"})
			So(c.MissingGenders, ShouldResemble, []string{"X"})
		})
	})
}

func TestNewResults(t *testing.T) {
	Convey("Given a ranked feed", t, func() {
		mods, gens := config()
		ranked := ranking.Rank(racecheck.Classify(feed, mods, gens).Valid, mods, gens)

		Convey("When every modality is requested", func() {
			res := types.NewResults("e1", mods, ranked, "")

			Convey("Then modalities follow configuration order", func() {
				So(res.Modalities, ShouldHaveLength, 2)
				So(res.Modalities[0].Modality, ShouldEqual, "42K")
				So(res.Modalities[0].Runners, ShouldHaveLength, 2)
				So(res.Modalities[0].Runners[0].Name, ShouldEqual, "Juan")
				So(res.Modalities[0].Runners[0].Category, ShouldEqual, "Elite Masc")
				So(res.Modalities[0].Runners[0].Gender, ShouldEqual, "Masculino")
				So(res.Modalities[0].Runners[0].RawCategory, ShouldEqual, "M-Elite")
				So(res.Modalities[1].Runners, ShouldHaveLength, 1)
			})
		})

		Convey("When one modality is requested", func() {
			res := types.NewResults("e1", mods, ranked, "21K")

			Convey("Then only it is returned", func() {
				So(res.Modalities, ShouldHaveLength, 1)
				So(res.Modalities[0].Runners[0].Name, ShouldEqual, "Luis")
			})
		})

		Convey("When nothing is configured", func() {
			res := types.NewResults("e1", nil, nil, "")

			Convey("Then an empty list is returned", func() {
				So(res.Modalities, ShouldNotBeNil)
				So(res.Modalities, ShouldBeEmpty)
			})
		})
	})
}
