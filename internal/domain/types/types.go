// Package types contains the read shapes returned to API clients.
package types

import (
	"time"

	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/internal/domain/ranking"
)

// Ack is the response to a results upload.
type Ack struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	JobID     string `json:"job_id,omitempty"`
	Checksum  string `json:"checksum"`
}

// Upload statuses.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// Classification is a classified feed plus the raw values that kept lines
// out of the valid set.
type Classification struct {
	EventID           string             `json:"event_id"`
	Total             int                `json:"total"`
	Valid             []racecheck.Runner `json:"valid_lines"`
	Invalid           []racecheck.Runner `json:"invalid_lines"`
	MissingCategories []string           `json:"missing_categories"`
	MissingGenders    []string           `json:"missing_genders"`
}

// NewClassification builds a Classification from a classifier result.
func NewClassification(eventID string, res racecheck.Result, modalities []racecheck.Modality, genders []racecheck.Gender) Classification {
	return Classification{
		EventID:           eventID,
		Total:             res.Total(),
		Valid:             res.Valid,
		Invalid:           res.Invalid,
		MissingCategories: racecheck.MissingCategories(res.Invalid, modalities),
		MissingGenders:    racecheck.MissingGenders(res.Invalid, genders),
	}
}

// ResultRow is one line of a results table.
type ResultRow struct {
	PosGeneral  int    `json:"pos_general"`
	PosCat      int    `json:"pos_cat"`
	PosSexo     int    `json:"pos_sexo"`
	Dorsal      string `json:"dorsal"`
	Name        string `json:"name"`
	Chip        string `json:"chip"`
	Sex         string `json:"sex"`
	Gender      string `json:"gender,omitempty"`
	Category    string `json:"category"`
	RawCategory string `json:"raw_category"`
	Time        string `json:"time"`
	Pace        string `json:"pace"`
}

// NewResultRow flattens a ranked runner.
func NewResultRow(rr ranking.RankedRunner) ResultRow {
	return ResultRow{
		PosGeneral:  rr.PosGeneral,
		PosCat:      rr.PosCat,
		PosSexo:     rr.PosSexo,
		Dorsal:      rr.Dorsal,
		Name:        rr.Name,
		Chip:        rr.Chip,
		Sex:         rr.Sex,
		Gender:      rr.GenderRef.Name,
		Category:    rr.CategoryRef.Name,
		RawCategory: rr.Category,
		Time:        rr.Time,
		Pace:        rr.Pace,
	}
}

// ModalityResults is the ranked roster of one modality.
type ModalityResults struct {
	Modality string      `json:"modality"`
	Runners  []ResultRow `json:"runners"`
}

// Results is the ranked roster of an event.
type Results struct {
	EventID    string            `json:"event_id"`
	Modalities []ModalityResults `json:"modalities"`
}

// NewResults groups ranked runners by modality in configuration order. When
// only is non-empty, only that modality is included.
func NewResults(eventID string, modalities []racecheck.Modality, ranked []ranking.RankedRunner, only string) Results {
	out := Results{EventID: eventID, Modalities: []ModalityResults{}}
	for _, m := range modalities {
		if only != "" && m.Name != only {
			continue
		}
		group := ranking.ByModality(ranked, m.Name)
		rows := make([]ResultRow, len(group))
		for i, rr := range group {
			rows[i] = NewResultRow(rr)
		}
		out.Modalities = append(out.Modalities, ModalityResults{Modality: m.Name, Runners: rows})
	}
	return out
}

// Ticket is what a runner sees when looking up their dorsal.
type Ticket struct {
	EventID   string    `json:"event_id"`
	EventName string    `json:"event_name"`
	EventDate time.Time `json:"event_date"`
	Modality  string    `json:"modality"`
	ResultRow
}

// Stats reports service state for monitoring.
type Stats struct {
	Started       bool  `json:"started"`
	WorkerCount   int   `json:"worker_count"`
	QueueCapacity int   `json:"queue_capacity"`
	QueueLength   int   `json:"queue_length"`
	DedupeEntries int64 `json:"dedupe_entries"`
	Events        int   `json:"events"`
}
