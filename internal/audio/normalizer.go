// Package audio turns uploads of arbitrary container format into the single
// canonical WAV layout the transcription providers receive.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"
)

// CanonicalName is the file name of the normalized artifact inside a workspace.
const CanonicalName = "canonical.wav"

var (
	// ErrUnsupportedFormat means the upload is not a recognized audio container.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrEmptyInput means the upload has no bytes.
	ErrEmptyInput = errors.New("empty audio input")
	// ErrUndecodable means the transcoder ran and could not turn the input into canonical audio.
	ErrUndecodable = errors.New("audio not decodable")
	// ErrTranscoderUnavailable means the transcoder is missing, timed out or was killed.
	ErrTranscoderUnavailable = errors.New("transcoder unavailable")
)

// IsConversion reports whether err is a conversion failure.
func IsConversion(err error) bool {
	return errors.Is(err, ErrUndecodable) || errors.Is(err, ErrTranscoderUnavailable)
}

// Input is an upload already written to disk.
type Input struct {
	Path   string
	Format Format
}

// Canonical is a WAV file in CanonicalSpec. It lives next to its Input and
// is removed together with the workspace holding both.
type Canonical struct {
	Path      string
	Converted bool // false when the upload was already canonical
}

// Normalizer converts an Input into Canonical audio.
type Normalizer interface {
	Normalize(ctx context.Context, in Input) (*Canonical, error)
}

// TranscoderOptions configures a Transcoder.
type TranscoderOptions struct {
	// Tool selects the argument layout: "ffmpeg" or "sox".
	Tool string
	// Command is the executable, optionally with leading arguments
	// (e.g. "nice -n 10 ffmpeg"). Defaults to Tool.
	Command string
	Timeout time.Duration
	Log     zerolog.Logger
}

// Transcoder normalizes audio by running ffmpeg or sox.
type Transcoder struct {
	tool    string
	argv    []string
	timeout time.Duration
	log     zerolog.Logger

	availOnce sync.Once
	avail     bool
}

// NewTranscoder validates the options and parses the command line.
func NewTranscoder(opts TranscoderOptions) (*Transcoder, error) {
	tool := strings.ToLower(opts.Tool)
	if tool == "" {
		tool = "ffmpeg"
	}
	if tool != "ffmpeg" && tool != "sox" {
		return nil, fmt.Errorf("unknown transcoder %q (want ffmpeg or sox)", opts.Tool)
	}

	command := opts.Command
	if command == "" {
		command = tool
	}
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse transcoder command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("transcoder command is empty")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Transcoder{
		tool:    tool,
		argv:    argv,
		timeout: timeout,
		log:     opts.Log.With().Str("component", "transcoder").Logger(),
	}, nil
}

// Tool returns "ffmpeg" or "sox".
func (t *Transcoder) Tool() string { return t.tool }

// Available reports whether the transcoder executable is in PATH. Checked once.
func (t *Transcoder) Available() bool {
	t.availOnce.Do(func() {
		_, err := exec.LookPath(t.argv[0])
		t.avail = err == nil
	})
	return t.avail
}

// Normalize writes CanonicalName next to in.Path. Canonical WAV input is
// renamed without re-encoding; anything else is transcoded and verified.
// The input file is consumed on success.
func (t *Transcoder) Normalize(ctx context.Context, in Input) (*Canonical, error) {
	info, err := os.Stat(in.Path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyInput
	}

	out := filepath.Join(filepath.Dir(in.Path), CanonicalName)

	if in.Format == FormatWAV {
		if err := CheckCanonical(in.Path); err == nil {
			if err := os.Rename(in.Path, out); err != nil {
				return nil, fmt.Errorf("pass-through rename: %w", err)
			}
			return &Canonical{Path: out, Converted: false}, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	args := append(append([]string{}, t.argv[1:]...), t.args(in.Path, out)...)
	cmd := exec.CommandContext(ctx, t.argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Clean up partial output
		os.Remove(out)
		return nil, t.classify(ctx, err, stderr.String())
	}

	if err := CheckCanonical(out); err != nil {
		os.Remove(out)
		return nil, fmt.Errorf("%w: %s output: %v", ErrUndecodable, t.tool, err)
	}
	os.Remove(in.Path)

	t.log.Debug().
		Str("format", string(in.Format)).
		Int64("input_bytes", info.Size()).
		Dur("elapsed", time.Since(start)).
		Msg("audio transcoded")

	return &Canonical{Path: out, Converted: true}, nil
}

func (t *Transcoder) args(in, out string) []string {
	rate := strconv.Itoa(CanonicalSpec.SampleRate)
	channels := strconv.Itoa(CanonicalSpec.Channels)
	if t.tool == "sox" {
		return []string{
			in,
			"-r", rate,
			"-c", channels,
			"-b", strconv.Itoa(CanonicalSpec.BitDepth),
			"-e", "signed-integer",
			out,
		}
	}
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-vn",
		"-ar", rate,
		"-ac", channels,
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"-y", out,
	}
}

// classify maps a failed run to ErrTranscoderUnavailable (could not run to
// completion) or ErrUndecodable (ran and rejected the input).
func (t *Transcoder) classify(ctx context.Context, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrTranscoderUnavailable, t.tool, ctxErr)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s not found: %v", ErrTranscoderUnavailable, t.argv[0], err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		return fmt.Errorf("%w: %s exit %d: %s", ErrUndecodable, t.tool, exitErr.ExitCode(), lastLine(stderr))
	}
	return fmt.Errorf("%w: %s: %v", ErrTranscoderUnavailable, t.tool, err)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
