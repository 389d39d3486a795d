package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/holohud/internal/store"
)

// SessionHandler serves the session log.
//
//	GET    /api/sessions?limit=N
//	GET    /api/sessions/{id}
//	GET    /api/sessions/{id}/events
//	DELETE /api/sessions/{id}
type SessionHandler struct {
	store *store.Store
	log   logrus.FieldLogger
}

// NewSessionHandler creates a SessionHandler over s.
func NewSessionHandler(s *store.Store, log logrus.FieldLogger) *SessionHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SessionHandler{store: s, log: log.WithField("handler", "sessions")}
}

// ServeHTTP routes collection, item and events requests.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch {
	case sub == "events" && r.Method == http.MethodGet:
		h.events(w, id)
	case sub == "events":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	case sub != "":
		WriteError(w, http.StatusNotFound, "not found")
	case r.Method == http.MethodGet:
		h.get(w, id)
	case r.Method == http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionResponse struct {
	ID           string  `json:"id"`
	ScreenWidth  float64 `json:"screen_width"`
	ScreenHeight float64 `json:"screen_height"`
	StartedAt    string  `json:"started_at"`
	EndedAt      string  `json:"ended_at,omitempty"`
	Events       int     `json:"events"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type eventResponse struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
	At    string `json:"at"`
}

type listEventsResponse struct {
	SessionID string          `json:"session_id"`
	Events    []eventResponse `json:"events"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:           s.ID,
		ScreenWidth:  s.ScreenWidth,
		ScreenHeight: s.ScreenHeight,
		StartedAt:    s.StartedAt.Format(time.RFC3339),
		Events:       s.Events,
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		h.log.WithError(err).Error("list sessions")
		WriteError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(s))
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "session not found")
			return
		}
		h.log.WithError(err).WithField("session", id).Error("get session")
		WriteError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	WriteJSON(w, http.StatusOK, toSessionResponse(s))
}

func (h *SessionHandler) events(w http.ResponseWriter, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "session not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	events, err := h.store.Events().ListBySession(id)
	if err != nil {
		h.log.WithError(err).WithField("session", id).Error("list events")
		WriteError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	resp := listEventsResponse{SessionID: id, Events: make([]eventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, eventResponse{
			Kind:  string(e.Kind),
			Value: e.Value,
			At:    e.At.Format(time.RFC3339Nano),
		})
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "session not found")
			return
		}
		h.log.WithError(err).WithField("session", id).Error("delete session")
		WriteError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
