package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/snarg/anomia-engine/internal/metrics"
)

var (
	// ErrUnavailable means the provider could not be reached, timed out or
	// answered with an error status. Never retried.
	ErrUnavailable = errors.New("transcription service unavailable")
	// ErrNoSpeech means the provider answered but recognized nothing.
	ErrNoSpeech = errors.New("no speech recognized")
)

// Result is the recognized text for one clip.
type Result struct {
	Text     string
	Language string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Language    string // default language tag, e.g. "ar"
	Prompt      string
	Temperature float64
	Timeout     time.Duration
}

// Client applies timeout, language defaults and error mapping on top of a Provider.
type Client struct {
	provider    Provider
	language    string
	prompt      string
	temperature float64
	timeout     time.Duration
}

// NewClient wraps p.
func NewClient(p Provider, opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		provider:    p,
		language:    opts.Language,
		prompt:      opts.Prompt,
		temperature: opts.Temperature,
		timeout:     timeout,
	}
}

// Provider returns the wrapped provider.
func (c *Client) Provider() Provider { return c.provider }

// Transcribe sends the canonical audio at audioPath to the provider. An empty
// language uses the client default. Provider failures are ErrUnavailable
// (wrapping the provider error) or ErrNoSpeech. A missing or unreadable
// audio file is returned as is, wrapping the *fs.PathError.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (Result, error) {
	if language == "" {
		language = c.language
	}

	if _, err := os.Stat(audioPath); err != nil {
		return Result{}, fmt.Errorf("transcribe: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Transcribe(ctx, audioPath, TranscribeOpts{
		Language:    language,
		Prompt:      c.prompt,
		Temperature: c.temperature,
	})
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return Result{}, fmt.Errorf("transcribe: %w", err)
	}
	if err != nil {
		c.countError(errorKind(ctx, err))
		return Result{}, fmt.Errorf("%w: %s: %w", ErrUnavailable, c.provider.Name(), err)
	}
	if resp == nil {
		c.countError("empty_response")
		return Result{}, fmt.Errorf("%w: %s: empty response", ErrUnavailable, c.provider.Name())
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		c.countError("no_speech")
		return Result{}, ErrNoSpeech
	}
	lang := resp.Language
	if lang == "" {
		lang = language
	}
	return Result{Text: text, Language: lang}, nil
}

func (c *Client) countError(kind string) {
	metrics.TranscriptionErrorsTotal.WithLabelValues(c.provider.Name(), kind).Inc()
}

// errorKind labels a provider failure for the error counter.
func errorKind(ctx context.Context, err error) string {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return "status_" + strconv.Itoa(se.StatusCode/100) + "xx"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "request"
	}
}
