// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/racecheck/internal/domain/racecheck"
)

// ErrInvalidEvent is returned by Validate.
var ErrInvalidEvent = errors.New("invalid event")

// Event is the aggregate an organizer edits: its classification
// configuration and the last imported racecheck feed are embedded so the
// whole event is stored and loaded as one document.
type Event struct {
	ID         string               `json:"id" bson:"_id"`
	Name       string               `json:"name" bson:"name"`
	Date       time.Time            `json:"date" bson:"date"`
	Location   string               `json:"location,omitempty" bson:"location,omitempty"`
	Modalities []racecheck.Modality `json:"modalities" bson:"modalities"`
	Genders    []racecheck.Gender   `json:"genders" bson:"genders"`

	// Results is the raw feed; ranking is recomputed from it on every read.
	Results     string    `json:"-" bson:"results"`
	ResultsFile string    `json:"results_file,omitempty" bson:"results_file,omitempty"`
	ImportedAt  time.Time `json:"imported_at,omitempty" bson:"imported_at,omitempty"`
	ImportSeq   int64     `json:"-" bson:"import_seq,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewEvent returns an event with a fresh ID and timestamps.
func NewEvent(name string, date time.Time, now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		Date:       date,
		Modalities: []racecheck.Modality{},
		Genders:    []racecheck.Gender{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Classify classifies the stored feed against the event configuration.
func (e Event) Classify() racecheck.Result {
	return racecheck.Classify(e.Results, e.Modalities, e.Genders)
}

// Validate checks the fields an organizer controls. Modality names must be
// unique; every category and gender needs a name and a prefix.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidEvent)
	}
	return ValidateConfig(e.Modalities, e.Genders)
}

// ValidateConfig checks a modality and gender configuration.
func ValidateConfig(modalities []racecheck.Modality, genders []racecheck.Gender) error {
	seen := make(map[string]struct{}, len(modalities))
	for i, m := range modalities {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return fmt.Errorf("%w: modality %d has no name", ErrInvalidEvent, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate modality %q", ErrInvalidEvent, name)
		}
		seen[name] = struct{}{}
		for j, c := range m.Categories {
			if strings.TrimSpace(c.Name) == "" || c.MatchsWith == "" {
				return fmt.Errorf("%w: modality %q category %d needs name and matchs_with", ErrInvalidEvent, name, j)
			}
		}
	}
	for i, g := range genders {
		if strings.TrimSpace(g.Name) == "" || g.MatchsWith == "" {
			return fmt.Errorf("%w: gender %d needs name and matchs_with", ErrInvalidEvent, i)
		}
	}
	return nil
}

// Clone returns a deep copy so stored events never share slices with callers.
func (e Event) Clone() Event {
	out := e
	out.Genders = append([]racecheck.Gender{}, e.Genders...)
	out.Modalities = make([]racecheck.Modality, len(e.Modalities))
	for i, m := range e.Modalities {
		out.Modalities[i] = racecheck.Modality{
			Name:       m.Name,
			Categories: append([]racecheck.Category{}, m.Categories...),
		}
	}
	return out
}
