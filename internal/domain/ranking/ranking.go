// Package ranking assigns overall, category and gender positions to the
// valid runners of a racecheck feed.
package ranking

import (
	"sort"
	"strconv"
	"strings"

	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/internal/domain/timing"
)

// RankedRunner is a runner annotated with its positions. PosCat and PosSexo
// stay 0 when the runner was never placed in a category or gender group.
type RankedRunner struct {
	racecheck.Runner

	PosGeneral int `json:"pos_general"`
	PosCat     int `json:"pos_cat"`
	PosSexo    int `json:"pos_sexo"`

	ModalityRef racecheck.Modality `json:"-"`
	CategoryRef racecheck.Category `json:"-"`
	GenderRef   racecheck.Gender   `json:"-"`

	// Group identities; category indexes the flattened category list.
	modality int
	category int
	gender   int
}

// CompareFunc orders two clock strings.
type CompareFunc func(a, b string) int

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithSubsecondTieBreak makes runners with the same whole-second time order
// by their fractional seconds.
func WithSubsecondTieBreak(enabled bool) Option {
	return func(e *Engine) {
		if enabled {
			e.compare = timing.CompareFractional
		} else {
			e.compare = timing.Compare
		}
	}
}

// Engine ranks runners. The zero configuration orders by whole seconds and
// keeps feed order on ties. An Engine holds no state between calls.
type Engine struct {
	compare CompareFunc
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{compare: timing.Compare}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rank ranks valid runners with the default Engine.
func Rank(valid []racecheck.Runner, modalities []racecheck.Modality, genders []racecheck.Gender) []RankedRunner {
	return New().Rank(valid, modalities, genders)
}

// Rank runs three passes over the same output slice.
//
// Pass one selects, per modality, the runners whose raw category matches one
// of the modality's categories, sorts them by time and numbers them. The
// runner's own modality column is not consulted. Gender and category are
// resolved against the flattened configuration; a runner missing either is
// dropped. Pass two numbers runners within each modality and
// category pair, pass three within each modality and gender pair.
//
// With no genders configured gender resolution is skipped and every PosSexo
// stays 0.
func (e *Engine) Rank(valid []racecheck.Runner, modalities []racecheck.Modality, genders []racecheck.Gender) []RankedRunner {
	out := []RankedRunner{}
	if len(modalities) == 0 || len(valid) == 0 {
		return out
	}
	categories := racecheck.FlattenCategories(modalities)
	offsets := categoryOffsets(modalities)

	for mi, m := range modalities {
		members := make([]int, 0, len(valid))
		for i, r := range valid {
			if m.Matches(r.Category) {
				members = append(members, i)
			}
		}
		e.sortByTime(members, func(i int) string { return valid[i].Time })

		for pos, i := range members {
			r := valid[i]
			ci := racecheck.MatchCategory(categories, r.Category)
			if ci < 0 {
				continue
			}
			gi := -1
			var g racecheck.Gender
			if len(genders) > 0 {
				gi = racecheck.MatchGender(genders, r.Sex)
				if gi < 0 {
					continue
				}
				g = genders[gi]
			}
			out = append(out, RankedRunner{
				Runner:      r,
				PosGeneral:  pos + 1,
				ModalityRef: m,
				CategoryRef: categories[ci],
				GenderRef:   g,
				modality:    mi,
				category:    ci,
				gender:      gi,
			})
		}
	}

	for mi, m := range modalities {
		for k := range m.Categories {
			ci := offsets[mi] + k
			e.assign(out, func(rr *RankedRunner) bool {
				return rr.modality == mi && rr.category == ci
			}, func(rr *RankedRunner, pos int) { rr.PosCat = pos })
		}
	}

	for mi := range modalities {
		for gi := range genders {
			e.assign(out, func(rr *RankedRunner) bool {
				return rr.modality == mi && rr.gender == gi
			}, func(rr *RankedRunner, pos int) { rr.PosSexo = pos })
		}
	}

	return out
}

// assign numbers the entries selected by in, in time order, through set.
func (e *Engine) assign(out []RankedRunner, in func(*RankedRunner) bool, set func(*RankedRunner, int)) {
	group := make([]int, 0)
	for i := range out {
		if in(&out[i]) {
			group = append(group, i)
		}
	}
	e.sortByTime(group, func(i int) string { return out[i].Time })
	for pos, i := range group {
		set(&out[i], pos+1)
	}
}

// sortByTime sorts idx ascending by the time of each index. The sort is
// stable, so equal times keep their feed order.
func (e *Engine) sortByTime(idx []int, timeOf func(int) string) {
	sort.SliceStable(idx, func(a, b int) bool {
		return e.compare(timeOf(idx[a]), timeOf(idx[b])) < 0
	})
}

func categoryOffsets(modalities []racecheck.Modality) []int {
	offsets := make([]int, len(modalities))
	n := 0
	for i, m := range modalities {
		offsets[i] = n
		n += len(m.Categories)
	}
	return offsets
}

// ByModality returns the entries ranked in the named modality, in overall
// position order.
func ByModality(ranked []RankedRunner, modality string) []RankedRunner {
	out := []RankedRunner{}
	for _, rr := range ranked {
		if rr.ModalityRef.Name == modality {
			out = append(out, rr)
		}
	}
	return out
}

// FindByDorsal returns the first entry whose dorsal equals the requested
// one. Numeric dorsals compare by value, so "007" finds "7".
func FindByDorsal(ranked []RankedRunner, dorsal string) (RankedRunner, bool) {
	want := normalizeDorsal(dorsal)
	if want == "" {
		return RankedRunner{}, false
	}
	for _, rr := range ranked {
		if normalizeDorsal(rr.Dorsal) == want {
			return rr, true
		}
	}
	return RankedRunner{}, false
}

func normalizeDorsal(d string) string {
	d = strings.TrimSpace(d)
	if n, err := strconv.ParseUint(d, 10, 64); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return d
}
