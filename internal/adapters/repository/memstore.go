package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/racecheck/internal/domain/model"
)

// InMemoryStore keeps events in a mutex-guarded map. Events are cloned on
// the way in and out.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string]model.Event
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string]model.Event)}
}

// Create implements Store.Create.
func (s *InMemoryStore) Create(_ context.Context, e model.Event) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		err := fmt.Errorf("%w: %s", ErrConflict, e.ID)
		observe("create", start, err)
		return err
	}
	s.events[e.ID] = e.Clone()
	observe("create", start, nil)
	return nil
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(_ context.Context, id string) (model.Event, error) {
	start := time.Now()
	s.mu.RLock()
	e, ok := s.events[id]
	s.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNotFound, id)
		observe("get", start, err)
		return model.Event{}, err
	}
	observe("get", start, nil)
	return e.Clone(), nil
}

// List implements Store.List.
func (s *InMemoryStore) List(_ context.Context) ([]model.Event, error) {
	start := time.Now()
	s.mu.RLock()
	out := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Clone())
	}
	s.mu.RUnlock()
	sortEvents(out)
	observe("list", start, nil)
	return out, nil
}

// Update implements Store.Update.
func (s *InMemoryStore) Update(_ context.Context, e model.Event) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; !ok {
		err := fmt.Errorf("%w: %s", ErrNotFound, e.ID)
		observe("update", start, err)
		return err
	}
	s.events[e.ID] = e.Clone()
	observe("update", start, nil)
	return nil
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		err := fmt.Errorf("%w: %s", ErrNotFound, id)
		observe("delete", start, err)
		return err
	}
	delete(s.events, id)
	observe("delete", start, nil)
	return nil
}

// Count implements Store.Count.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

// Close implements Store.Close.
func (s *InMemoryStore) Close(_ context.Context) error { return nil }
