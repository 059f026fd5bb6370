package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/domain/journal"
	"github.com/ganot/scanpoint/internal/domain/scan"
	"github.com/ganot/scanpoint/internal/domain/syncengine"
	"github.com/ganot/scanpoint/internal/logger"
)

// Station is the operator-facing surface of a check-in station.
type Station interface {
	ID() string
	ActivityID() string
	Submit(ctx context.Context, payload, activityID string) (checkin.Snapshot, error)
	Confirm(ctx context.Context) (checkin.Snapshot, error)
	Reject(ctx context.Context) (checkin.Snapshot, error)
	Snapshot() checkin.Snapshot
	SubscribeState() (<-chan checkin.Snapshot, func())
	SubscribeSync() (<-chan syncengine.Status, func())
	SyncStatus(ctx context.Context) (syncengine.Status, error)
	TriggerSync() bool
	Pending(ctx context.Context) ([]scan.QueuedScan, error)
	Journal(ctx context.Context, opts journal.ListOptions) ([]journal.Entry, error)
}

// ScanRequest is the body of POST /v1/scans.
type ScanRequest struct {
	Payload    string `json:"payload"`
	ActivityID string `json:"activity_id,omitempty"`
}

// ScanResponse is the answer to a scan. Suppressed repeats carry the current
// state unchanged.
type ScanResponse struct {
	Suppressed bool             `json:"suppressed,omitempty"`
	State      checkin.Snapshot `json:"state"`
}

// SyncTriggerResponse is the answer to POST /v1/sync.
type SyncTriggerResponse struct {
	Triggered bool `json:"triggered"`
}

// Server wires HTTP handlers.
type Server struct {
	station Station
	logger  *slog.Logger
}

// NewServer creates the station HTTP router. extra mounts additional
// handlers (the MCP endpoint) behind the same auth.
func NewServer(st Station, authMiddleware func(http.Handler) http.Handler, log *slog.Logger, extra map[string]http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	srv := &Server{station: st, logger: logger.OrDiscard(log)}

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}
		r.Post("/v1/scans", srv.handleScan)
		r.Post("/v1/confirm", srv.handleConfirm)
		r.Post("/v1/reject", srv.handleReject)
		r.Get("/v1/state", srv.handleState)
		r.Get("/v1/events", srv.handleEvents)
		r.Get("/v1/sync", srv.handleSyncStatus)
		r.Post("/v1/sync", srv.handleSyncTrigger)
		r.Get("/v1/queue", srv.handleQueue)
		r.Get("/v1/journal", srv.handleJournal)
		for pattern, h := range extra {
			r.Handle(pattern, h)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	snap, err := s.station.Submit(r.Context(), req.Payload, req.ActivityID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ScanResponse{State: snap})
	case errors.Is(err, scan.ErrSuppressed):
		writeJSON(w, http.StatusAccepted, ScanResponse{Suppressed: true, State: snap})
	case errors.Is(err, checkin.ErrBusy):
		writeError(w, http.StatusConflict, err.Error(), snap)
	case errors.Is(err, checkin.ErrInvalidState):
		writeError(w, http.StatusBadRequest, err.Error(), snap)
	case errors.Is(err, checkin.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), snap)
	default:
		s.logger.ErrorContext(r.Context(), "scan failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", snap)
	}
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, s.station.Confirm)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, s.station.Reject)
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request, fn func(context.Context) (checkin.Snapshot, error)) {
	snap, err := fn(r.Context())
	if errors.Is(err, checkin.ErrNoPendingConfirmation) {
		writeError(w, http.StatusConflict, err.Error(), snap)
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "confirmation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.station.Snapshot())
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.station.SyncStatus(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "sync status failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSyncTrigger(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusAccepted, SyncTriggerResponse{Triggered: s.station.TriggerSync()})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.station.Pending(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "listing queue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	if items == nil {
		items = []scan.QueuedScan{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := journal.ListOptions{ActivityID: q.Get("activity_id")}
	if v := q.Get("outcome"); v != "" {
		outcome := journal.Outcome(v)
		opts.Outcome = &outcome
	}
	if v := q.Get("source"); v != "" {
		source := journal.Source(v)
		opts.Source = &source
	}
	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", nil)
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer", nil)
		return
	}

	entries, err := s.station.Journal(r.Context(), opts)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "listing journal failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid")
	}
	return n, nil
}
