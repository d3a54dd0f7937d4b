package model

import "time"

// ImportJob is one accepted results upload waiting to be applied to its
// event.
type ImportJob struct {
	JobID       string    `json:"job_id"`
	EventID     string    `json:"event_id"`
	Filename    string    `json:"filename"`
	Raw         string    `json:"-"`
	Checksum    string    `json:"checksum"`
	Seq         int64     `json:"seq"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ImportSummary describes the outcome of applying an ImportJob.
type ImportSummary struct {
	JobID   string `json:"job_id"`
	EventID string `json:"event_id"`
	Valid   int    `json:"valid"`
	Invalid int    `json:"invalid"`
	// Stale is set when a newer feed was already stored.
	Stale   bool   `json:"stale,omitempty"`
}
