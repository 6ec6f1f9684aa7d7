package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/anomia-engine/internal/verify"
)

// Verifier runs an upload through the verification pipeline.
type Verifier interface {
	Verify(ctx context.Context, up verify.Upload, wordID int) (*verify.Result, error)
}

// VerifyFailure is the error body of the verification route.
type VerifyFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// failureStatus maps failure codes to HTTP status.
var failureStatus = map[verify.Code]int{
	verify.CodeInvalidUpload:            http.StatusBadRequest,
	verify.CodeUnknownWord:              http.StatusNotFound,
	verify.CodeUnsupportedFormat:        http.StatusUnsupportedMediaType,
	verify.CodeConversionFailed:         http.StatusUnprocessableEntity,
	verify.CodeTranscoderUnavailable:    http.StatusServiceUnavailable,
	verify.CodeTranscriptionUnavailable: http.StatusServiceUnavailable,
	verify.CodeInternal:                 http.StatusInternalServerError,
}

// UploadHandler accepts recorded attempts at naming a word.
type UploadHandler struct {
	verifier Verifier
	maxBytes int64
	log      zerolog.Logger
}

// NewUploadHandler creates a new upload handler. maxBytes caps the request body.
func NewUploadHandler(verifier Verifier, maxBytes int64, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		verifier: verifier,
		maxBytes: maxBytes,
		log:      log.With().Str("handler", "upload").Logger(),
	}
}

// Routes registers the upload endpoint.
func (h *UploadHandler) Routes(r chi.Router) {
	r.Post("/audio/transcribe", h.Transcribe)
}

// Transcribe handles POST /api/audio/transcribe.
// Multipart form: "audio" file and "word_id" integer field.
func (h *UploadHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeFailure(w, http.StatusRequestEntityTooLarge, verify.CodeInvalidUpload,
				"audio file exceeds "+strconv.FormatInt(tooBig.Limit>>20, 10)+" MB")
			return
		}
		writeFailure(w, http.StatusBadRequest, verify.CodeInvalidUpload, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	wordID, err := strconv.Atoi(strings.TrimSpace(r.FormValue("word_id")))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, verify.CodeInvalidUpload, "word_id must be an integer")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, verify.CodeInvalidUpload, "missing audio file")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, verify.CodeInvalidUpload, "failed to read audio file")
		return
	}

	res, err := h.verifier.Verify(r.Context(), verify.Upload{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, wordID)
	if err != nil {
		var f *verify.Failure
		if !errors.As(err, &f) {
			f = &verify.Failure{Code: verify.CodeInternal, Message: "internal error", Err: err}
		}
		status, ok := failureStatus[f.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		if status >= 500 {
			h.log.Error().Err(err).Int("word_id", wordID).Msg("verification failed")
		}
		writeFailure(w, status, f.Code, f.Message)
		return
	}

	WriteJSON(w, http.StatusOK, res)
}

func writeFailure(w http.ResponseWriter, status int, code verify.Code, msg string) {
	WriteJSON(w, status, VerifyFailure{Success: false, Error: string(code), Message: msg})
}
