package verify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/anomia-engine/internal/audio"
	"github.com/snarg/anomia-engine/internal/match"
	"github.com/snarg/anomia-engine/internal/storage"
	"github.com/snarg/anomia-engine/internal/transcribe"
	"github.com/snarg/anomia-engine/internal/words"
)

var webmHead = []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86, 0x81, 0x01}

// fakeNormalizer writes a placeholder canonical file next to the input.
type fakeNormalizer struct {
	err   error
	calls atomic.Int32
	seen  string
}

func (f *fakeNormalizer) Normalize(ctx context.Context, in audio.Input) (*audio.Canonical, error) {
	f.calls.Add(1)
	f.seen = in.Path
	if f.err != nil {
		return nil, f.err
	}
	out := filepath.Join(filepath.Dir(in.Path), audio.CanonicalName)
	if err := os.WriteFile(out, []byte("RIFF"), 0o600); err != nil {
		return nil, err
	}
	return &audio.Canonical{Path: out, Converted: in.Format != audio.FormatWAV}, nil
}

// fakeTranscriber returns a fixed result, or runs fn when set.
type fakeTranscriber struct {
	text  string
	err   error
	fn    func(ctx context.Context) (transcribe.Result, error)
	calls atomic.Int32
	lang  string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path, lang string) (transcribe.Result, error) {
	f.calls.Add(1)
	f.lang = lang
	if _, err := os.Stat(path); err != nil {
		return transcribe.Result{}, fmt.Errorf("canonical audio missing: %w", err)
	}
	if f.fn != nil {
		return f.fn(ctx)
	}
	return transcribe.Result{Text: f.text}, f.err
}

type harness struct {
	svc     *Service
	scratch *storage.Scratch
	norm    *fakeNormalizer
	stt     *fakeTranscriber
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	scratch, err := storage.NewScratch(filepath.Join(t.TempDir(), "scratch"))
	if err != nil {
		t.Fatalf("NewScratch: %v", err)
	}
	h := &harness{
		scratch: scratch,
		norm:    &fakeNormalizer{},
		stt:     &fakeTranscriber{},
	}
	h.svc = New(Deps{
		Words:       words.Default(),
		Workspaces:  scratch,
		Normalizer:  h.norm,
		Transcriber: h.stt,
		Scorer:      match.New(),
		Language:    "ar",
		Log:         zerolog.Nop(),
	})
	h.svc.now = func() time.Time { return time.Date(2025, 5, 1, 9, 30, 0, 0, time.FixedZone("X", 3*3600)) }
	return h
}

func (h *harness) assertNoWorkspaces(t *testing.T) {
	t.Helper()
	if n := h.scratch.Count(); n != 0 {
		t.Errorf("%d workspaces left on disk, want 0", n)
	}
}

func wantFailure(t *testing.T, err error, code Code, stage Stage) *Failure {
	t.Helper()
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("err = %v (%T), want *Failure", err, err)
	}
	if f.Code != code {
		t.Errorf("Code = %q, want %q", f.Code, code)
	}
	if f.Stage != stage {
		t.Errorf("Stage = %q, want %q", f.Stage, stage)
	}
	return f
}

func TestVerify_Correct(t *testing.T) {
	h := newHarness(t)
	h.stt.text = "فيل"

	res, err := h.svc.Verify(context.Background(), Upload{Data: webmHead, Filename: "rec.webm"}, 10)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Success || res.Result != "correct" || res.Confidence != 1 {
		t.Errorf("res = %+v", res)
	}
	if res.WordID != 10 || res.Transcription != "فيل" {
		t.Errorf("res = %+v", res)
	}
	if res.Timestamp != "2025-05-01T06:30:00Z" {
		t.Errorf("Timestamp = %q, want UTC RFC 3339", res.Timestamp)
	}
	if h.stt.lang != "ar" {
		t.Errorf("language = %q, want ar", h.stt.lang)
	}
	if filepath.Ext(h.norm.seen) != ".webm" {
		t.Errorf("upload written as %q, want .webm extension", h.norm.seen)
	}
	h.assertNoWorkspaces(t)
}

func TestVerify_NormalizedSpellingIsCorrect(t *testing.T) {
	h := newHarness(t)
	h.stt.text = "قطه" // ة written as ه

	res, err := h.svc.Verify(context.Background(), Upload{Data: webmHead}, 11)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Result != "correct" {
		t.Errorf("Result = %q, want correct", res.Result)
	}
}

func TestVerify_Incorrect(t *testing.T) {
	h := newHarness(t)
	h.stt.text = "سيارة"

	res, err := h.svc.Verify(context.Background(), Upload{Data: webmHead}, 10)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Result != "incorrect" || res.Confidence >= 0.8 {
		t.Errorf("res = %+v", res)
	}
	h.assertNoWorkspaces(t)
}

func TestVerify_UnknownWordDoesNoWork(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Verify(context.Background(), Upload{Data: webmHead}, 999)
	wantFailure(t, err, CodeUnknownWord, StageReceived)
	if h.norm.calls.Load() != 0 || h.stt.calls.Load() != 0 {
		t.Errorf("normalize=%d transcribe=%d calls, want 0", h.norm.calls.Load(), h.stt.calls.Load())
	}
	h.assertNoWorkspaces(t)
}

func TestVerify_UnknownWordBeatsEmptyUpload(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Verify(context.Background(), Upload{}, 999)
	wantFailure(t, err, CodeUnknownWord, StageReceived)
}

func TestVerify_EmptyUpload(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Verify(context.Background(), Upload{Filename: "rec.webm"}, 1)
	wantFailure(t, err, CodeInvalidUpload, StageReceived)
	if h.norm.calls.Load() != 0 {
		t.Error("normalizer called for empty upload")
	}
}

func TestVerify_UnsupportedFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Verify(context.Background(), Upload{Data: []byte("hello world"), Filename: "notes.txt"}, 1)
	f := wantFailure(t, err, CodeUnsupportedFormat, StageReceived)
	if !errors.Is(f, audio.ErrUnsupportedFormat) {
		t.Errorf("failure does not wrap ErrUnsupportedFormat: %v", f)
	}
	if h.norm.calls.Load() != 0 {
		t.Error("normalizer called for unsupported format")
	}
	h.assertNoWorkspaces(t)
}

func TestVerify_NormalizeFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
	}{
		{"undecodable", fmt.Errorf("%w: ffmpeg exit 1", audio.ErrUndecodable), CodeConversionFailed},
		{"transcoder missing", fmt.Errorf("%w: ffmpeg not found", audio.ErrTranscoderUnavailable), CodeTranscoderUnavailable},
		{"other", errors.New("disk full"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.norm.err = tt.err
			_, err := h.svc.Verify(context.Background(), Upload{Data: webmHead}, 1)
			wantFailure(t, err, tt.code, StageNormalized)
			if h.stt.calls.Load() != 0 {
				t.Error("transcriber called after conversion failure")
			}
			h.assertNoWorkspaces(t)
		})
	}
}

func TestVerify_TranscriptionUnavailable(t *testing.T) {
	h := newHarness(t)
	h.stt.err = fmt.Errorf("%w: whisper: status 503", transcribe.ErrUnavailable)

	_, err := h.svc.Verify(context.Background(), Upload{Data: webmHead}, 1)
	f := wantFailure(t, err, CodeTranscriptionUnavailable, StageTranscribed)
	if !errors.Is(f, transcribe.ErrUnavailable) {
		t.Errorf("failure does not wrap ErrUnavailable: %v", f)
	}
	if h.stt.calls.Load() != 1 {
		t.Errorf("transcriber called %d times, want 1", h.stt.calls.Load())
	}
	h.assertNoWorkspaces(t)
}

func TestVerify_LocalTranscribeFaultIsInternal(t *testing.T) {
	h := newHarness(t)
	h.stt.err = fmt.Errorf("transcribe: %w", &fs.PathError{Op: "open", Path: "canonical.wav", Err: fs.ErrNotExist})

	_, err := h.svc.Verify(context.Background(), Upload{Data: webmHead}, 1)
	f := wantFailure(t, err, CodeInternal, StageTranscribed)
	if errors.Is(f, transcribe.ErrUnavailable) {
		t.Errorf("local fault reported as unavailable: %v", f)
	}
	if !errors.Is(f, fs.ErrNotExist) {
		t.Errorf("failure does not wrap the file error: %v", f)
	}
	h.assertNoWorkspaces(t)
}

func TestVerify_NoSpeechIsIncorrect(t *testing.T) {
	h := newHarness(t)
	h.stt.err = transcribe.ErrNoSpeech

	res, err := h.svc.Verify(context.Background(), Upload{Data: webmHead}, 1)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Result != "incorrect" || res.Confidence != 0 || res.Transcription != "" {
		t.Errorf("res = %+v", res)
	}
	h.assertNoWorkspaces(t)
}

func TestVerify_PanicBecomesInternalError(t *testing.T) {
	h := newHarness(t)
	h.stt.fn = func(ctx context.Context) (transcribe.Result, error) {
		panic("boom")
	}

	_, err := h.svc.Verify(context.Background(), Upload{Data: webmHead}, 1)
	wantFailure(t, err, CodeInternal, StageTranscribed)
	h.assertNoWorkspaces(t)
}

// panicScorer panics on every call.
type panicScorer struct{}

func (panicScorer) Score(recognized, expected string) match.Verdict { panic("scorer broke") }

func TestVerify_PanicReportsStageInProgress(t *testing.T) {
	h := newHarness(t)
	h.stt.text = "بنات"
	h.svc.scorer = panicScorer{}

	_, err := h.svc.Verify(context.Background(), Upload{Data: webmHead}, 1)
	wantFailure(t, err, CodeInternal, StageScored)
	h.assertNoWorkspaces(t)
}

func TestVerify_CancelledRequestStillCleansUp(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.stt.fn = func(ctx context.Context) (transcribe.Result, error) {
		cancel()
		<-ctx.Done()
		return transcribe.Result{}, fmt.Errorf("%w: %v", transcribe.ErrUnavailable, ctx.Err())
	}

	_, err := h.svc.Verify(ctx, Upload{Data: webmHead}, 1)
	wantFailure(t, err, CodeTranscriptionUnavailable, StageTranscribed)
	h.assertNoWorkspaces(t)
}

func TestVerify_WorkspacesAreNotShared(t *testing.T) {
	h := newHarness(t)
	h.stt.text = "بنات"

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		if _, err := h.svc.Verify(context.Background(), Upload{Data: webmHead}, 1); err != nil {
			t.Fatalf("Verify: %v", err)
		}
		dir := filepath.Dir(h.norm.seen)
		if seen[dir] {
			t.Fatalf("workspace %q reused", dir)
		}
		seen[dir] = true
	}
	h.assertNoWorkspaces(t)
}

func TestFailureError(t *testing.T) {
	f := fail(CodeConversionFailed, StageNormalized, "audio could not be decoded", audio.ErrUndecodable)
	if !errors.Is(f, audio.ErrUndecodable) {
		t.Error("Unwrap lost the cause")
	}
	want := "conversion_failed at normalized: audio could not be decoded: audio not decodable"
	if f.Error() != want {
		t.Errorf("Error() = %q, want %q", f.Error(), want)
	}
}
