package testresults

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/racecheck/internal/domain/racecheck"
)

// feedHeader is the first line of a generated feed.
const feedHeader = "SEXO|NOMBRE|CHIP|DORSAL|MODALIDAD|CATEGORIA|TIEMPO|PASO1|PASO2|PASO3|RITMO"

// Share of generated lines that carry a category no event configures.
const unknownCategoryOneIn = 20

// course is one generated modality with its distance in kilometres and
// the spread of finish times in seconds.
type course struct {
	name    string
	km      int
	fastest int
	spread  int
}

var courses = []course{
	{name: "42K", km: 42, fastest: 2*3600 + 10*60, spread: 3 * 3600},
	{name: "21K", km: 21, fastest: 60 * 60, spread: 90 * 60},
	{name: "10K", km: 10, fastest: 28 * 60, spread: 50 * 60},
}

var (
	sexes         = []string{"M", "F"}
	ageGroups     = []string{"Elite", "Libre", "Veteranos"}
	firstNames    = []string{"Juan", "Ana", "Pedro", "Lucía", "Mateo", "Sofía", "Diego", "Valentina"}
	lastNames     = []string{"Pérez", "García", "López", "Martínez", "Rodríguez", "Fernández"}
	categoryCodes = map[string]string{"42K": "M", "21K": "H", "10K": "D"}
)

// Event is a generated event: its configuration and the feed to upload.
type Event struct {
	Name       string               `json:"name"`
	Date       string               `json:"date"`
	Modalities []racecheck.Modality `json:"modalities"`
	Genders    []racecheck.Gender   `json:"genders"`

	Feed string `json:"-"`
	ID   string `json:"-"`
}

// generateEvents creates n events with runners feed lines each.
func generateEvents(n, runners int) []Event {
	events := make([]Event, n)
	for i := range events {
		events[i] = generateEvent(i, runners)
	}
	return events
}

func generateEvent(index, runners int) Event {
	e := Event{
		Name:    fmt.Sprintf("Load test %d %s", index, uuid.NewString()[:8]),
		Date:    "2025-06-01",
		Genders: []racecheck.Gender{{Name: "Masculino", MatchsWith: "M"}, {Name: "Femenino", MatchsWith: "F"}},
	}
	for _, c := range courses {
		m := racecheck.Modality{Name: c.name}
		for _, g := range ageGroups {
			m.Categories = append(m.Categories, racecheck.Category{
				Name:       g,
				MatchsWith: categoryPrefix(c.name, g),
			})
		}
		e.Modalities = append(e.Modalities, m)
	}
	e.Feed = generateFeed(runners)
	return e
}

// categoryPrefix builds the raw category value of a course and age group,
// e.g. "M-Elite" for the marathon.
func categoryPrefix(courseName, group string) string {
	return categoryCodes[courseName] + "-" + group
}

func generateFeed(runners int) string {
	var b strings.Builder
	b.WriteString(feedHeader)
	b.WriteByte('\n')
	for i := 0; i < runners; i++ {
		c := courses[randInt(len(courses))]
		sex := sexes[randInt(len(sexes))]
		category := categoryPrefix(c.name, ageGroups[randInt(len(ageGroups))])
		if randInt(unknownCategoryOneIn) == 0 {
			category = "SIN-CATEGORIA"
		}
		secs := c.fastest + randInt(c.spread)
		millis := randInt(1000)
		name := firstNames[randInt(len(firstNames))] + " " + lastNames[randInt(len(lastNames))]
		fmt.Fprintf(&b, "%s|%s|%s|%d|%s|%s|%s||||%s\n",
			sex, name, uuid.NewString()[:8], i+1, c.name, category,
			clock(secs, millis), pace(secs, c.km))
	}
	return b.String()
}

func clock(secs, millis int) string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", secs/3600, secs/60%60, secs%60, millis)
}

// pace renders minutes per kilometre.
func pace(secs, km int) string {
	per := secs / km
	return fmt.Sprintf("%02d:%02d", per/60, per%60)
}

// randInt returns a uniform int in [0, n) using crypto/rand.
func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
