package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/anomia-engine/internal/store"
)

const defaultProgressUser = "default"

type ProgressHandler struct {
	progress store.Progress
	log      zerolog.Logger
}

func NewProgressHandler(p store.Progress, log zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress: p,
		log:      log.With().Str("handler", "progress").Logger(),
	}
}

func (h *ProgressHandler) Routes(r chi.Router) {
	r.Post("/progress", h.Put)
	r.Get("/progress/{user_id}", h.Get)
}

// Put handles POST /api/progress. The whole body is stored as the user's
// progress document, replacing any previous one.
func (h *ProgressHandler) Put(w http.ResponseWriter, r *http.Request) {
	var doc map[string]any
	if err := DecodeJSON(r, &doc); err != nil || doc == nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "request body must be a JSON object")
		return
	}

	userID := progressUserID(doc["user_id"])

	if err := h.progress.PutProgress(r.Context(), userID, doc); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("store progress failed")
		WriteErrorDetail(w, http.StatusInternalServerError, ErrInternal, "error updating progress")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "user_id": userID})
}

// Get handles GET /api/progress/{user_id}. Users without stored progress get
// the default document.
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	doc, err := h.progress.Progress(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		WriteJSON(w, http.StatusOK, store.DefaultProgress())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("load progress failed")
		WriteErrorDetail(w, http.StatusInternalServerError, ErrInternal, "error fetching progress")
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

// progressUserID turns the body's user_id into the storage key. Numeric ids
// are written without exponent so they match the GET path.
func progressUserID(v any) string {
	var id string
	switch v := v.(type) {
	case nil:
	case string:
		id = strings.TrimSpace(v)
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		id = fmt.Sprint(v)
	}
	if id == "" {
		return defaultProgressUser
	}
	return id
}
