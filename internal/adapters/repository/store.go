// Package repository persists events.
package repository

import (
	"context"
	"sort"
	"time"

	"github.com/okian/racecheck/internal/domain/model"
	"github.com/okian/racecheck/pkg/metrics"
)

// Store provides read/write access to events.
type Store interface {
	// Create stores a new event. Returns ErrConflict if the ID is taken.
	Create(ctx context.Context, e model.Event) error

	// Get returns the event with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (model.Event, error)

	// List returns all events ordered by date, then ID.
	List(ctx context.Context) ([]model.Event, error)

	// Update replaces a stored event. Returns ErrNotFound if it does not exist.
	Update(ctx context.Context, e model.Event) error

	// Delete removes an event. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored events.
	Count(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close(ctx context.Context) error
}

func sortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ID < events[j].ID
	})
}

// observe records the latency and outcome of a store call.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000, err)
}
