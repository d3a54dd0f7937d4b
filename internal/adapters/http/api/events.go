package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/racecheck/internal/app"
	"github.com/okian/racecheck/internal/domain/racecheck"
)

const maxJSONBody = 1 << 20

// dateLayouts are accepted for an event date, most specific first.
var dateLayouts = []string{time.RFC3339, time.DateOnly}

// eventRequest mirrors the OpenAPI schema for POST /events.
type eventRequest struct {
	Name       string               `json:"name"`
	Date       string               `json:"date"`
	Location   string               `json:"location"`
	Modalities []racecheck.Modality `json:"modalities"`
	Genders    []racecheck.Gender   `json:"genders"`
}

func (e eventRequest) input() (service.EventInput, error) {
	if strings.TrimSpace(e.Name) == "" {
		return service.EventInput{}, errors.New("missing name")
	}
	date, err := parseDate(e.Date)
	if err != nil {
		return service.EventInput{}, err
	}
	return service.EventInput{
		Name:       e.Name,
		Date:       date,
		Location:   e.Location,
		Modalities: e.Modalities,
		Genders:    e.Genders,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid date; must be RFC3339 or YYYY-MM-DD")
}

// configRequest mirrors the OpenAPI schema for PUT /events/{id}/config.
type configRequest struct {
	Modalities []racecheck.Modality `json:"modalities"`
	Genders    []racecheck.Gender   `json:"genders"`
}

// EventsHandler handles event management requests.
type EventsHandler struct {
	deps Dependencies
	errs *errorWriter
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies, errs *errorWriter) *EventsHandler {
	return &EventsHandler{deps: deps, errs: errs}
}

// HandleCreate handles POST /events requests.
func (h *EventsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_event"
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	in, err := req.input()
	if err != nil {
		h.errs.write(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	e, err := h.deps.CreateEvent(r.Context(), in)
	if err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/events/"+e.ID)
	writeJSON(w, http.StatusCreated, e)
}

// HandleList handles GET /events requests.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.deps.ListEvents(r.Context())
	if err != nil {
		h.errs.write(w, r, Wrap("api.list_events", err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleGet handles GET /events/{id} requests.
func (h *EventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		h.errs.write(w, r, Wrap("api.get_event", err))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleUpdateConfig handles PUT /events/{id}/config requests.
func (h *EventsHandler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_config"
	var req configRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.write(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	e, err := h.deps.UpdateConfig(r.Context(), r.PathValue("id"), req.Modalities, req.Genders)
	if err != nil {
		h.errs.write(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleDelete handles DELETE /events/{id} requests.
func (h *EventsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteEvent(r.Context(), r.PathValue("id")); err != nil {
		h.errs.write(w, r, Wrap("api.delete_event", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ErrPayloadTooLarge
		}
		return err
	}
	return nil
}
