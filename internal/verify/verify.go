// Package verify runs one uploaded recording through normalization,
// transcription and scoring against a target word.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/anomia-engine/internal/audio"
	"github.com/snarg/anomia-engine/internal/match"
	"github.com/snarg/anomia-engine/internal/metrics"
	"github.com/snarg/anomia-engine/internal/storage"
	"github.com/snarg/anomia-engine/internal/transcribe"
	"github.com/snarg/anomia-engine/internal/words"
)

// sniffLen is how many leading bytes format detection looks at.
const sniffLen = 16

// Upload is one recording as received from a client.
type Upload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Result is a completed verification.
type Result struct {
	Success       bool    `json:"success"`
	Result        string  `json:"result"` // "correct" or "incorrect"
	Confidence    float64 `json:"confidence"`
	WordID        int     `json:"word_id"`
	Transcription string  `json:"transcription"`
	Timestamp     string  `json:"timestamp"`
}

// WordLookup resolves target words by id.
type WordLookup interface {
	Word(id int) (words.Word, bool)
}

// Workspaces hands out per-request scratch directories.
type Workspaces interface {
	Open() (*storage.Workspace, error)
}

// Transcriber turns canonical audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (transcribe.Result, error)
}

// Scorer compares recognized text with the expected word.
type Scorer interface {
	Score(recognized, expected string) match.Verdict
}

// Deps are the collaborators of a Service.
type Deps struct {
	Words       WordLookup
	Workspaces  Workspaces
	Normalizer  audio.Normalizer
	Transcriber Transcriber
	Scorer      Scorer
	Language    string
	Log         zerolog.Logger
}

// Service verifies spoken words.
type Service struct {
	words       WordLookup
	workspaces  Workspaces
	normalizer  audio.Normalizer
	transcriber Transcriber
	scorer      Scorer
	language    string
	log         zerolog.Logger
	now         func() time.Time
}

// New creates a Service.
func New(d Deps) *Service {
	return &Service{
		words:       d.Words,
		workspaces:  d.Workspaces,
		normalizer:  d.Normalizer,
		transcriber: d.Transcriber,
		scorer:      d.Scorer,
		language:    d.Language,
		log:         d.Log.With().Str("component", "verify").Logger(),
		now:         time.Now,
	}
}

// run tracks the stage of one verification. stage is the last completed
// stage, attempt the one in progress.
type run struct {
	log     zerolog.Logger
	stage   Stage
	attempt Stage
	start   time.Time
	last    time.Time
}

func (r *run) begin(s Stage) { r.attempt = s }

func (r *run) advance(s Stage) {
	now := time.Now()
	metrics.StageDuration.WithLabelValues(string(s)).Observe(now.Sub(r.last).Seconds())
	r.log.Debug().
		Str("from", string(r.stage)).
		Str("to", string(s)).
		Dur("elapsed", now.Sub(r.last)).
		Msg("stage transition")
	r.stage = s
	r.last = now
}

// Verify checks whether the recording in up says the word with id wordID.
// Every returned error is a *Failure. The request's scratch workspace is
// removed before Verify returns, whatever the outcome.
func (s *Service) Verify(ctx context.Context, up Upload, wordID int) (res *Result, err error) {
	now := time.Now()
	rn := &run{
		log:     s.log.With().Int("word_id", wordID).Logger(),
		stage:   StageReceived,
		attempt: StageReceived,
		start:   now,
		last:    now,
	}

	defer func() {
		if p := recover(); p != nil {
			rn.log.Error().Interface("panic", p).Str("stage", string(rn.attempt)).Msg("verification panicked")
			res, err = nil, fail(CodeInternal, rn.attempt, "internal error", fmt.Errorf("panic: %v", p))
		}
		var f *Failure
		if errors.As(err, &f) {
			metrics.VerificationsTotal.WithLabelValues(string(f.Code)).Inc()
			rn.log.Warn().
				Str("code", string(f.Code)).
				Str("stage", string(f.Stage)).
				Err(f.Err).
				Dur("elapsed", time.Since(rn.start)).
				Msg("verification failed")
			rn.stage = StageFailed
			return
		}
		if res != nil {
			metrics.VerificationsTotal.WithLabelValues(res.Result).Inc()
		}
	}()

	return s.verify(ctx, rn, up, wordID)
}

func (s *Service) verify(ctx context.Context, rn *run, up Upload, wordID int) (*Result, error) {
	word, ok := s.words.Word(wordID)
	if !ok {
		return nil, fail(CodeUnknownWord, StageReceived, fmt.Sprintf("word %d not found", wordID), nil)
	}
	if len(up.Data) == 0 {
		return nil, fail(CodeInvalidUpload, StageReceived, "audio file is empty", audio.ErrEmptyInput)
	}

	head := up.Data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	format, err := audio.DetectFormat(head, up.Filename, up.ContentType)
	if err != nil {
		return nil, fail(CodeUnsupportedFormat, StageReceived, "unsupported audio format", err)
	}

	ws, err := s.workspaces.Open()
	if err != nil {
		return nil, fail(CodeInternal, StageReceived, "could not allocate workspace", err)
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			rn.log.Error().Err(err).Str("workspace", ws.ID()).Msg("workspace cleanup failed")
		}
	}()

	inPath, err := ws.Write("upload"+format.Ext(), up.Data)
	if err != nil {
		return nil, fail(CodeInternal, StageReceived, "could not store upload", err)
	}

	rn.begin(StageNormalized)
	canonical, err := s.normalizer.Normalize(ctx, audio.Input{Path: inPath, Format: format})
	if err != nil {
		metrics.TranscodesTotal.WithLabelValues(string(format), "failed").Inc()
		switch {
		case errors.Is(err, audio.ErrTranscoderUnavailable):
			return nil, fail(CodeTranscoderUnavailable, StageNormalized, "audio conversion is unavailable", err)
		case errors.Is(err, audio.ErrUndecodable):
			return nil, fail(CodeConversionFailed, StageNormalized, "audio could not be decoded", err)
		case errors.Is(err, audio.ErrEmptyInput):
			return nil, fail(CodeInvalidUpload, StageNormalized, "audio file is empty", err)
		}
		return nil, fail(CodeInternal, StageNormalized, "audio normalization failed", err)
	}
	if canonical.Converted {
		metrics.TranscodesTotal.WithLabelValues(string(format), "converted").Inc()
	} else {
		metrics.TranscodesTotal.WithLabelValues(string(format), "passthrough").Inc()
	}
	rn.advance(StageNormalized)

	rn.begin(StageTranscribed)
	var text string
	tr, err := s.transcriber.Transcribe(ctx, canonical.Path, s.language)
	switch {
	case errors.Is(err, transcribe.ErrNoSpeech):
		rn.log.Info().Msg("no speech recognized")
	case errors.Is(err, transcribe.ErrUnavailable):
		return nil, fail(CodeTranscriptionUnavailable, StageTranscribed, "transcription service unavailable", err)
	case err != nil:
		return nil, fail(CodeInternal, StageTranscribed, "transcription failed", err)
	default:
		text = tr.Text
	}
	rn.advance(StageTranscribed)

	rn.begin(StageScored)
	verdict := match.Verdict{}
	if text != "" {
		verdict = s.scorer.Score(text, word.Word)
	}
	rn.advance(StageScored)

	result := "incorrect"
	if verdict.Correct {
		result = "correct"
	}
	rn.advance(StageCompleted)

	rn.log.Info().
		Str("format", string(format)).
		Bool("converted", canonical.Converted).
		Str("result", result).
		Float64("confidence", verdict.Confidence).
		Dur("elapsed", time.Since(rn.start)).
		Msg("verification completed")

	return &Result{
		Success:       true,
		Result:        result,
		Confidence:    verdict.Confidence,
		WordID:        wordID,
		Transcription: text,
		Timestamp:     s.now().UTC().Format(time.RFC3339),
	}, nil
}
