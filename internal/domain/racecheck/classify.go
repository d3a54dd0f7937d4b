package racecheck

import (
	"sort"
	"strings"
)

// Column positions of a racecheck line. Positions 7 to 9 carry splits the
// service does not use.
const (
	colSex      = 0
	colName     = 1
	colChip     = 2
	colDorsal   = 3
	colModality = 4
	colCategory = 5
	colTime     = 6
	colPace     = 10

	fieldSeparator = "|"
	commentMarker  = ";"
	emptyMarker    = "N/A"
)

// Runner is one parsed line of a racecheck feed.
type Runner struct {
	Sex      string `json:"sex"`
	Name     string `json:"name"`
	Chip     string `json:"chip"`
	Dorsal   string `json:"dorsal"`
	Modality string `json:"modality"`
	Category string `json:"category"`
	Time     string `json:"time"`
	Pace     string `json:"pace"`
}

// Result splits a feed into lines that matched both a gender and a category
// and lines that did not.
type Result struct {
	Valid   []Runner `json:"valid_lines"`
	Invalid []Runner `json:"invalid_lines"`
}

// Total returns the number of data lines that were classified.
func (r Result) Total() int { return len(r.Valid) + len(r.Invalid) }

// ParseLine splits a trimmed data line into a Runner. Missing columns are
// left empty.
func ParseLine(line string) Runner {
	fields := strings.Split(line, fieldSeparator)
	at := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	return Runner{
		Sex:      at(colSex),
		Name:     at(colName),
		Chip:     at(colChip),
		Dorsal:   at(colDorsal),
		Modality: at(colModality),
		Category: at(colCategory),
		Time:     at(colTime),
		Pace:     at(colPace),
	}
}

// lineBreaks folds CRLF and bare CR into LF.
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Lines returns the data lines of a feed: the header line is dropped and
// blank, comment and N/A lines are skipped. Each line is trimmed.
func Lines(raw string) []string {
	if raw == "" {
		return nil
	}
	rows := strings.Split(lineBreaks.Replace(raw), "\n")
	out := make([]string, 0, len(rows))
	for _, row := range rows[1:] {
		line := strings.TrimSpace(row)
		if line == "" || strings.HasPrefix(line, commentMarker) || line == emptyMarker {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Classify parses raw and routes every data line to Valid when its sex
// matches a gender and its category matches a category of any modality.
// Categories are matched against the flattened list of every modality.
func Classify(raw string, modalities []Modality, genders []Gender) Result {
	res := Result{Valid: []Runner{}, Invalid: []Runner{}}
	categories := FlattenCategories(modalities)
	for _, line := range Lines(raw) {
		r := ParseLine(line)
		if MatchGender(genders, r.Sex) >= 0 && MatchCategory(categories, r.Category) >= 0 {
			res.Valid = append(res.Valid, r)
			continue
		}
		res.Invalid = append(res.Invalid, r)
	}
	return res
}

// MissingCategories lists, sorted and without duplicates, the raw category
// values of invalid runners that no configured category matches. Organizers
// use it to create the categories a feed needs.
func MissingCategories(invalid []Runner, modalities []Modality) []string {
	categories := FlattenCategories(modalities)
	return missing(invalid, func(r Runner) string { return r.Category }, func(v string) bool {
		return MatchCategory(categories, v) >= 0
	})
}

// MissingGenders is MissingCategories for the sex column.
func MissingGenders(invalid []Runner, genders []Gender) []string {
	return missing(invalid, func(r Runner) string { return r.Sex }, func(v string) bool {
		return MatchGender(genders, v) >= 0
	})
}

func missing(invalid []Runner, field func(Runner) string, known func(string) bool) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range invalid {
		raw := field(r)
		v := strings.TrimSpace(raw)
		if v == "" || known(raw) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
