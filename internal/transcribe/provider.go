// Package transcribe sends canonical audio to a speech-to-text backend and
// returns the recognized text.
package transcribe

import (
	"context"
	"fmt"
	"time"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error)
	Name() string  // "whisper", "deepinfra", "elevenlabs", "openai"
	Model() string // model identifier for logs
}

// TranscribeOpts are per-request options. Zero-value fields are omitted
// from the request.
type TranscribeOpts struct {
	Language    string
	Prompt      string // domain vocabulary hint
	Temperature float64
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
	Duration float64 // audio duration in seconds, 0 if not reported
}

// StatusError is a non-200 reply from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, body)
}

// Settings selects and configures a Provider.
type Settings struct {
	Provider string // whisper | deepinfra | elevenlabs | openai
	URL      string // endpoint override, empty for the provider default
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// NewProvider builds the Provider named by s.Provider.
func NewProvider(s Settings) (Provider, error) {
	switch s.Provider {
	case "", "whisper":
		return NewWhisperClient(s.URL, s.Model, s.APIKey, s.Timeout), nil
	case "deepinfra":
		if s.APIKey == "" {
			return nil, fmt.Errorf("deepinfra requires an API key")
		}
		return NewDeepInfraClient(s.URL, s.APIKey, s.Model, s.Timeout), nil
	case "elevenlabs":
		if s.APIKey == "" {
			return nil, fmt.Errorf("elevenlabs requires an API key")
		}
		return NewElevenLabsClient(s.URL, s.APIKey, s.Model, s.Timeout), nil
	case "openai":
		if s.APIKey == "" {
			return nil, fmt.Errorf("openai requires an API key")
		}
		return NewOpenAIClient(s.URL, s.APIKey, s.Model, s.Timeout), nil
	}
	return nil, fmt.Errorf("unknown transcription provider %q", s.Provider)
}
