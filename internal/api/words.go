package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/anomia-engine/internal/words"
)

// WordSource is the read side of the word catalog.
type WordSource interface {
	All() []words.Word
	Word(id int) (words.Word, bool)
	Len() int
}

type WordsHandler struct {
	words WordSource
}

func NewWordsHandler(ws WordSource) *WordsHandler {
	return &WordsHandler{words: ws}
}

func (h *WordsHandler) Routes(r chi.Router) {
	r.Get("/words", h.List)
	r.Get("/words/{id}", h.Get)
}

// List handles GET /api/words. The body is a bare array of cards.
func (h *WordsHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.words.All())
}

// Get handles GET /api/words/{id}.
func (h *WordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := PathInt(r, "id")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "word id must be an integer")
		return
	}
	word, ok := h.words.Word(id)
	if !ok {
		WriteErrorWithCode(w, http.StatusNotFound, ErrWordNotFound, "Word not found")
		return
	}
	WriteJSON(w, http.StatusOK, word)
}
