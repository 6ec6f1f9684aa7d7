package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient transcribes through the OpenAI audio API using go-openai.
type OpenAIClient struct {
	model  string
	client *openai.Client
}

// NewOpenAIClient creates an OpenAI transcription client. baseURL may be
// empty for api.openai.com, or point at any API-compatible gateway
// (e.g. "https://gateway.example/v1").
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIClient{
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

// Name returns the provider name.
func (oc *OpenAIClient) Name() string { return "openai" }

// Model returns the configured model identifier.
func (oc *OpenAIClient) Model() string { return oc.model }

// Transcribe uploads the file to /audio/transcriptions.
func (oc *OpenAIClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	resp, err := oc.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       oc.model,
		FilePath:    audioPath,
		Language:    opts.Language,
		Prompt:      opts.Prompt,
		Temperature: float32(opts.Temperature),
		Format:      openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &StatusError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
			return nil, &StatusError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
		}
		return nil, fmt.Errorf("openai request: %w", err)
	}

	return &Response{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}
