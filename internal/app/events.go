package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/racecheck/internal/domain/model"
	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/pkg/logger"
)

// EventInput carries the organizer-editable fields of an event.
type EventInput struct {
	Name       string               `json:"name"`
	Date       time.Time            `json:"date"`
	Location   string               `json:"location"`
	Modalities []racecheck.Modality `json:"modalities"`
	Genders    []racecheck.Gender   `json:"genders"`
}

// CreateEvent validates and stores a new event.
func (s *Service) CreateEvent(ctx context.Context, in EventInput) (model.Event, error) {
	e := model.NewEvent(strings.TrimSpace(in.Name), in.Date, s.now())
	e.Location = strings.TrimSpace(in.Location)
	if in.Modalities != nil {
		e.Modalities = in.Modalities
	}
	if in.Genders != nil {
		e.Genders = in.Genders
	}
	if err := e.Validate(); err != nil {
		return model.Event{}, err
	}
	if err := s.store.Create(ctx, e); err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info(ctx, "event created",
		logger.String("event_id", e.ID),
		logger.String("name", e.Name),
		logger.Int("modalities", len(e.Modalities)),
	)
	return e, nil
}

// GetEvent returns one event.
func (s *Service) GetEvent(ctx context.Context, id string) (model.Event, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns every event ordered by date.
func (s *Service) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// UpdateConfig replaces an event's modalities and genders. The stored feed
// is kept and is ranked against the new configuration on the next read.
func (s *Service) UpdateConfig(ctx context.Context, id string, modalities []racecheck.Modality, genders []racecheck.Gender) (model.Event, error) {
	if modalities == nil {
		modalities = []racecheck.Modality{}
	}
	if genders == nil {
		genders = []racecheck.Gender{}
	}
	if err := model.ValidateConfig(modalities, genders); err != nil {
		return model.Event{}, err
	}

	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	e, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Event{}, fmt.Errorf("update config: %w", err)
	}
	e.Modalities = modalities
	e.Genders = genders
	e.UpdatedAt = s.now()
	if err := s.store.Update(ctx, e); err != nil {
		return model.Event{}, fmt.Errorf("update config: %w", err)
	}
	s.logger.Info(ctx, "event configuration updated",
		logger.String("event_id", id),
		logger.Int("modalities", len(modalities)),
		logger.Int("genders", len(genders)),
	)
	return e, nil
}

// DeleteEvent removes an event. Imports still queued for it fail when
// applied.
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	s.forgetUpload(ctx, id)
	s.logger.Info(ctx, "event deleted", logger.String("event_id", id))
	return nil
}
