// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	service "github.com/okian/racecheck/internal/app"
	"github.com/okian/racecheck/internal/adapters/repository"
	"github.com/okian/racecheck/internal/domain/model"
	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/internal/domain/types"
	"github.com/okian/racecheck/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CreateEvent(ctx context.Context, in service.EventInput) (model.Event, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	UpdateConfig(ctx context.Context, id string, modalities []racecheck.Modality, genders []racecheck.Gender) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error

	SubmitResults(ctx context.Context, eventID, filename string, raw []byte) (types.Ack, error)
	MaxUploadBytes() int64
	Preview(ctx context.Context, eventID string, raw []byte) (types.Classification, error)
	Classification(ctx context.Context, eventID string) (types.Classification, error)
	Results(ctx context.Context, eventID, modality string) (types.Results, error)
	Ticket(ctx context.Context, eventID, dorsal, modality string) (types.Ticket, error)
	ExportResults(ctx context.Context, eventID string, w io.Writer) error

	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	eventsHandler  *EventsHandler
	resultsHandler *ResultsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.Get().Named("http")
	}
	errs := &errorWriter{logger: log}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		eventsHandler:  NewEventsHandler(deps, errs),
		resultsHandler: NewResultsHandler(deps, errs),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /events", MetricsMiddleware(s.eventsHandler.HandleCreate, "events"))
	mux.HandleFunc("GET /events", MetricsMiddleware(s.eventsHandler.HandleList, "events"))
	mux.HandleFunc("GET /events/{id}", MetricsMiddleware(s.eventsHandler.HandleGet, "event"))
	mux.HandleFunc("DELETE /events/{id}", MetricsMiddleware(s.eventsHandler.HandleDelete, "event"))
	mux.HandleFunc("PUT /events/{id}/config", MetricsMiddleware(s.eventsHandler.HandleUpdateConfig, "event_config"))

	mux.HandleFunc("POST /events/{id}/results", MetricsMiddleware(s.resultsHandler.HandleUpload, "results_upload"))
	mux.HandleFunc("POST /events/{id}/preview", MetricsMiddleware(s.resultsHandler.HandlePreview, "preview"))
	mux.HandleFunc("GET /events/{id}/classification", MetricsMiddleware(s.resultsHandler.HandleClassification, "classification"))
	mux.HandleFunc("GET /events/{id}/results", MetricsMiddleware(s.resultsHandler.HandleResults, "results"))
	mux.HandleFunc("GET /events/{id}/results.xlsx", MetricsMiddleware(s.resultsHandler.HandleExport, "results_export"))
	mux.HandleFunc("GET /events/{id}/tickets/{dorsal}", MetricsMiddleware(s.resultsHandler.HandleTicket, "ticket"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorWriter renders errors as JSON and logs the ones that are the
// server's fault.
type errorWriter struct {
	logger logger.Logger
}

func (e *errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		e.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// statusFor maps error kinds to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrRunnerNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrUploadTooLarge), errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, model.ErrInvalidEvent),
		errors.Is(err, service.ErrInvalidUpload),
		errors.Is(err, service.ErrUnknownModality),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
