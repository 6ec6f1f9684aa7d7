package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/anomia-engine/internal/store"
)

type SessionsHandler struct {
	sessions store.Sessions
	log      zerolog.Logger
}

func NewSessionsHandler(s store.Sessions, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		sessions: s,
		log:      log.With().Str("handler", "sessions").Logger(),
	}
}

// Routes registers the session endpoints. The /user/ route must be
// registered explicitly so "user" is never parsed as a session id.
func (h *SessionsHandler) Routes(r chi.Router) {
	r.Post("/sessions", h.Create)
	r.Get("/sessions/user/{user_id}", h.ListForUser)
	r.Get("/sessions/{id}", h.Get)
}

// Create handles POST /api/sessions.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in store.NewSession
	if err := DecodeJSON(r, &in); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if in.UserID == 0 {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "user_id is required")
		return
	}

	id, err := h.sessions.CreateSession(r.Context(), in)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", in.UserID).Msg("create session failed")
		WriteErrorDetail(w, http.StatusInternalServerError, ErrInternal, "error creating session")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "session_id": id})
}

// ListForUser handles GET /api/sessions/user/{user_id}?limit=N.
func (h *SessionsHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := PathInt64(r, "user_id")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "user_id must be an integer")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, ok := QueryInt(r, "limit")
		if !ok || n < 0 {
			WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := h.sessions.UserSessions(r.Context(), userID, limit)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("list sessions failed")
		WriteErrorDetail(w, http.StatusInternalServerError, ErrInternal, "error fetching sessions")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// Get handles GET /api/sessions/{id}.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt64(r, "id")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "session id must be an integer")
		return
	}
	s, err := h.sessions.Session(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		WriteErrorWithCode(w, http.StatusNotFound, ErrSessionNotFound, "Session not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("session_id", id).Msg("get session failed")
		WriteErrorDetail(w, http.StatusInternalServerError, ErrInternal, "error fetching session")
		return
	}
	WriteJSON(w, http.StatusOK, s)
}
