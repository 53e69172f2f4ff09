// Package http exposes the acquisition engine as a JSON control API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/sequence"
	"github.com/go-chi/chi/v5"
)

// DefaultPlanLimit caps POST /plan/events when no limit is given.
const DefaultPlanLimit = 1000

// Engine defines the engine operations the API drives.
type Engine interface {
	Start(ctx context.Context, s *domain.Settings, opts ...lattice.RunOption) (*lattice.Run, error)
	Current() (*lattice.Run, bool)
	Abort() bool
	SetPaused(paused bool) bool
	IsPaused() bool
	IsAbortRequested() bool
	NextWakeTime() (time.Time, bool)
	TotalEvents(s *domain.Settings) (int, error)
	Events(ctx context.Context, s *domain.Settings) (*sequence.Iterator, error)
}

// Server holds the handlers of the control API.
type Server struct {
	Engine  Engine
	Store   ports.RunStore
	Streams *StreamManager
	Logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server, chi.Router)

// WithStore enables the run history endpoints.
func WithStore(store ports.RunStore) Option {
	return func(s *Server, _ chi.Router) {
		s.Store = store
	}
}

// WithStreams publishes the given stream on GET /acquisitions/current/stream.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server, _ chi.Router) {
		s.Streams = sm
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server, _ chi.Router) {
		s.Logger = logger
	}
}

// WithMetrics mounts a metrics handler (e.g. promhttp) on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(_ *Server, r chi.Router) {
		r.Method(http.MethodGet, "/metrics", h)
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{Engine: engine, Logger: slog.Default()}
	r := chi.NewRouter()
	r.Use(enableCORS)

	for _, opt := range opts {
		opt(server, r)
	}
	if server.Streams == nil {
		server.Streams = NewStreamManager()
	}

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)

	r.Post("/plan/count", server.CountEvents)
	r.Post("/plan/events", server.PlanEvents)

	r.Route("/acquisitions", func(r chi.Router) {
		r.Post("/", server.StartAcquisition)
		r.Get("/", server.ListAcquisitions)
		r.Route("/current", func(r chi.Router) {
			r.Get("/", server.GetCurrent)
			r.Get("/stream", server.StreamCurrent)
			r.Post("/abort", server.AbortCurrent)
			r.Post("/pause", server.pauseHandler(true))
			r.Post("/resume", server.pauseHandler(false))
		})
		r.Get("/{id}", server.GetAcquisition)
		r.Get("/{id}/events", server.GetAcquisitionEvents)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// CountResponse answers POST /plan/count.
type CountResponse struct {
	Total   int              `json:"total"`
	Summary sequence.Summary `json:"summary"`
}

// PlanResponse answers POST /plan/events.
type PlanResponse struct {
	Total     int             `json:"total"`
	Truncated bool            `json:"truncated"`
	Events    []*domain.Event `json:"events"`
}

// StatusResponse describes the active acquisition.
type StatusResponse struct {
	Record         domain.RunRecord `json:"record"`
	Paused         bool             `json:"paused"`
	AbortRequested bool             `json:"abort_requested"`
	NextWake       *time.Time       `json:"next_wake,omitempty"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":     "lattice-http",
		"version": strings.TrimSpace(lattice.Version),
		"running": s.running(),
	})
}

func (s *Server) running() bool {
	_, ok := s.Engine.Current()
	return ok
}

// CountEvents handles POST /plan/count.
func (s *Server) CountEvents(w http.ResponseWriter, r *http.Request) {
	settings, ok := s.decodeSettings(w, r)
	if !ok {
		return
	}
	summary, err := sequence.Summarize(settings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Total: summary.TotalEvents, Summary: summary})
}

// PlanEvents handles POST /plan/events?limit=N. The events are generated
// without touching hardware other than a focus read for relative stacks.
func (s *Server) PlanEvents(w http.ResponseWriter, r *http.Request) {
	limit := DefaultPlanLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	settings, ok := s.decodeSettings(w, r)
	if !ok {
		return
	}
	total, err := s.Engine.TotalEvents(settings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	it, err := s.Engine.Events(r.Context(), settings)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := PlanResponse{Total: total, Events: make([]*domain.Event, 0, min(limit, total))}
	for len(resp.Events) < limit {
		e, err := it.Next(r.Context())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Events = append(resp.Events, e)
	}
	resp.Truncated = total > len(resp.Events)
	writeJSON(w, http.StatusOK, resp)
}

// StartAcquisition handles POST /acquisitions. The run proceeds in the
// background; the answer is 202 with the initial record.
func (s *Server) StartAcquisition(w http.ResponseWriter, r *http.Request) {
	settings, ok := s.decodeSettings(w, r)
	if !ok {
		return
	}
	var opts []lattice.RunOption
	if id := r.URL.Query().Get("id"); id != "" {
		opts = append(opts, lattice.WithRunID(id))
	}

	run, err := s.Engine.Start(context.WithoutCancel(r.Context()), settings, opts...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("acquisition started", "run_id", run.ID(), "name", settings.Name)
	w.Header().Set("Location", "/acquisitions/"+run.ID())
	writeJSON(w, http.StatusAccepted, run.Record())
}

// GetCurrent handles GET /acquisitions/current.
func (s *Server) GetCurrent(w http.ResponseWriter, r *http.Request) {
	run, ok := s.Engine.Current()
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no acquisition running"})
		return
	}
	resp := StatusResponse{
		Record:         run.Record(),
		Paused:         s.Engine.IsPaused(),
		AbortRequested: s.Engine.IsAbortRequested(),
	}
	if wake, ok := s.Engine.NextWakeTime(); ok {
		resp.NextWake = &wake
	}
	writeJSON(w, http.StatusOK, resp)
}

// AbortCurrent handles POST /acquisitions/current/abort.
func (s *Server) AbortCurrent(w http.ResponseWriter, r *http.Request) {
	if !s.Engine.Abort() {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no acquisition running"})
		return
	}
	s.Logger.Info("abort requested")
	writeJSON(w, http.StatusAccepted, map[string]bool{"abort_requested": true})
}

func (s *Server) pauseHandler(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.Engine.SetPaused(paused) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no acquisition running"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
	}
}

// ListAcquisitions handles GET /acquisitions.
func (s *Server) ListAcquisitions(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "no run store configured"})
		return
	}
	ids, err := s.Store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	records := make([]*domain.RunRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Store.Load(r.Context(), id)
		if errors.Is(err, domain.ErrRunNotFound) {
			continue // expired between List and Load
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		records = append(records, rec)
	}
	writeJSON(w, http.StatusOK, records)
}

// GetAcquisition handles GET /acquisitions/{id}. The active run is answered
// from memory, others from the store.
func (s *Server) GetAcquisition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if run, ok := s.Engine.Current(); ok && run.ID() == id {
		writeJSON(w, http.StatusOK, run.Record())
		return
	}
	if s.Store == nil {
		s.writeError(w, domain.ErrRunNotFound)
		return
	}
	rec, err := s.Store.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetAcquisitionEvents handles GET /acquisitions/{id}/events.
func (s *Server) GetAcquisitionEvents(w http.ResponseWriter, r *http.Request) {
	journal, ok := s.Store.(ports.EventJournal)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "no event journal configured"})
		return
	}
	events, err := journal.Events(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// StreamCurrent handles GET /acquisitions/current/stream (SSE).
func (s *Server) StreamCurrent(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func (s *Server) decodeSettings(w http.ResponseWriter, r *http.Request) (*domain.Settings, bool) {
	var settings domain.Settings
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid settings: %v", err)})
		return nil, false
	}
	return &settings, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var settingsErr *domain.SettingsError
	switch {
	case errors.As(err, &settingsErr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Field: settingsErr.Field})
	case errors.Is(err, domain.ErrUnknownOrderMode), errors.Is(err, domain.ErrZeroZStep), errors.Is(err, domain.ErrNoChannels):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAcquisitionRunning):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrRunNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		s.Logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
