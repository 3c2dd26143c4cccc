// Package openai provides a batch STT provider backed by the OpenAI audio
// transcription API (Whisper).
//
// Results are requested as verbose_json with segment-level timestamps so that
// callers receive timed segments alongside the plain text.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/audioscribe/pkg/provider/internal/oaierr"
	"github.com/MrWong99/audioscribe/pkg/provider/stt"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = "whisper-1"

// DefaultTimeout bounds a single transcription request.
const DefaultTimeout = 10 * time.Minute

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client   oai.Client
	model    string
	language string
	prompt   string
	timeout  time.Duration
}

// config holds optional configuration for the provider.
type config struct {
	baseURL    string
	model      string
	language   string
	prompt     string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel selects the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithLanguage sets the default language hint used when a request carries
// none.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithPrompt sets the default prompt used when a request carries none.
func WithPrompt(prompt string) Option {
	return func(c *config) {
		c.prompt = prompt
	}
}

// WithTimeout bounds each Transcribe call. Defaults to [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// New constructs a new OpenAI STT Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}

	cfg := &config{model: DefaultModel, timeout: DefaultTimeout}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.model == "" {
		cfg.model = DefaultModel
	}
	if cfg.timeout <= 0 {
		cfg.timeout = DefaultTimeout
	}

	// Retries would resend whole audio files; failures surface to the caller.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
		prompt:   cfg.prompt,
		timeout:  cfg.timeout,
	}, nil
}

// Model returns the transcription model in use.
func (p *Provider) Model() string { return p.model }

// verboseResponse is the subset of the verbose_json payload we consume.
type verboseResponse struct {
	Text     string        `json:"text"`
	Segments []stt.Segment `json:"segments"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("openai stt: open audio: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := oai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  oai.AudioModel(p.model),
		ResponseFormat:         oai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}
	if lang := firstNonEmpty(req.Language, p.language); lang != "" {
		params.Language = oai.String(lang)
	}
	if prompt := firstNonEmpty(req.Prompt, p.prompt); prompt != "" {
		params.Prompt = oai.String(prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, oaierr.Classify("openai stt: transcribe", err)
	}

	var body verboseResponse
	if raw := resp.RawJSON(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return nil, oaierr.Classify("openai stt: decode response", err)
		}
	}
	if body.Text == "" {
		body.Text = resp.Text
	}
	return &stt.Result{Text: body.Text, Segments: body.Segments}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
