// Package config provides the configuration schema, loader, and provider registry
// for the audioscribe transcription server.
//
// Configuration is layered: an optional YAML file, then AUDIOSCRIBE_*
// environment variables, then built-in defaults for anything still unset.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// LogLevel controls log verbosity for the audioscribe server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// FailurePolicy decides what a failed summary does to its request.
type FailurePolicy string

const (
	// SummaryFail fails the whole request.
	SummaryFail FailurePolicy = "fail"

	// SummaryOmit returns the transcript without a summary.
	SummaryOmit FailurePolicy = "omit"
)

// IsValid reports whether p is a recognised failure policy.
func (p FailurePolicy) IsValid() bool {
	return p == SummaryFail || p == SummaryOmit
}

// Config is the root configuration structure for audioscribe.
// It is typically loaded using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"    envPrefix:"SERVER_"`
	Providers ProvidersConfig `yaml:"providers" envPrefix:"PROVIDERS_"`
	Pipeline  PipelineConfig  `yaml:"pipeline"  envPrefix:"PIPELINE_"`
	Speakers  SpeakersConfig  `yaml:"speakers"  envPrefix:"SPEAKERS_"`
	Summary   SummaryConfig   `yaml:"summary"   envPrefix:"SUMMARY_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":3001").
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level" env:"LOG_LEVEL"`

	// StaticDir holds the built front-end served for non-API paths.
	StaticDir string `yaml:"static_dir" env:"STATIC_DIR"`

	// MaxUploadBytes caps the request body of an upload.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`

	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`

	// ShutdownTimeout bounds the graceful drain of in-flight requests.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// "*" allows any origin.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// ProvidersConfig selects the remote backends.
type ProvidersConfig struct {
	// STT is the speech-to-text provider. Required.
	STT ProviderEntry `yaml:"stt" envPrefix:"STT_"`

	// LLM is the summary provider. Leave the name empty to disable
	// summarization.
	LLM ProviderEntry `yaml:"llm" envPrefix:"LLM_"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "anthropic").
	Name string `yaml:"name" env:"NAME"`

	// APIKey is a server-side credential. When set it is used for every
	// request and the key sent by clients is ignored.
	APIKey string `yaml:"api_key" env:"API_KEY"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url" env:"BASE_URL"`

	// Model selects a specific model within the provider (e.g., "whisper-1", "gpt-4o-mini").
	Model string `yaml:"model" env:"MODEL"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above (e.g., "language" and "prompt" for STT).
	Options map[string]any `yaml:"options"`
}

// OptString returns the string option key, or "" when it is absent or not a
// string.
func (e ProviderEntry) OptString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// PipelineConfig tunes the local audio processing.
type PipelineConfig struct {
	// FFmpegPath is the ffmpeg binary, resolved through PATH when relative.
	FFmpegPath string `yaml:"ffmpeg_path" env:"FFMPEG_PATH"`

	// ScratchDir holds the per-request temporary files.
	ScratchDir string `yaml:"scratch_dir" env:"SCRATCH_DIR"`

	// ChunkDuration is the nominal length of each chunk.
	ChunkDuration time.Duration `yaml:"chunk_duration" env:"CHUNK_DURATION"`

	// ChunkThresholdBytes is the transcoded size above which audio is chunked.
	ChunkThresholdBytes int64 `yaml:"chunk_threshold_bytes" env:"CHUNK_THRESHOLD_BYTES"`

	// BitrateKbps is the constant MP3 bitrate of transcoded audio.
	BitrateKbps int `yaml:"bitrate_kbps" env:"BITRATE_KBPS"`

	// ChunkConcurrency is the number of chunks transcribed at once.
	ChunkConcurrency int `yaml:"chunk_concurrency" env:"CHUNK_CONCURRENCY"`

	// TranscribeTimeout bounds a single chunk transcription call.
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout" env:"TRANSCRIBE_TIMEOUT"`
}

// SpeakersConfig tunes the pause-based speaker heuristic.
type SpeakersConfig struct {
	// GapThreshold is the pause in seconds that starts a new speaker turn.
	GapThreshold float64 `yaml:"gap_threshold" env:"GAP_THRESHOLD"`

	// MaxSpeakers caps the number of distinct labels.
	MaxSpeakers int `yaml:"max_speakers" env:"MAX_SPEAKERS"`
}

// SummaryConfig tunes the LLM summary.
type SummaryConfig struct {
	// Prompt replaces the built-in summary instruction.
	Prompt string `yaml:"prompt" env:"PROMPT"`

	// MaxTokens caps the length of the summary.
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`

	// OnFailure selects what a failed summary does to the request.
	OnFailure FailurePolicy `yaml:"on_failure" env:"ON_FAILURE"`
}

// TelemetryConfig configures metrics.
type TelemetryConfig struct {
	// ServiceName is reported as the OpenTelemetry service.name.
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`

	// MetricsAddr serves /metrics on a separate listener. Empty serves it on
	// the main listener.
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr          = ":3001"
	DefaultStaticDir           = "client/build"
	DefaultMaxUploadBytes      = 1 << 30
	DefaultReadHeaderTimeout   = 10 * time.Second
	DefaultShutdownTimeout     = 15 * time.Second
	DefaultFFmpegPath          = "ffmpeg"
	DefaultChunkDuration       = 5 * time.Minute
	DefaultChunkThresholdBytes = 25 * 1024 * 1024
	DefaultBitrateKbps         = 128
	DefaultTranscribeTimeout   = 10 * time.Minute
	DefaultGapThreshold        = 2.0
	DefaultMaxSpeakers         = 5
	DefaultSummaryMaxTokens    = 500
	DefaultServiceName         = "audioscribe"
)

// ApplyDefaults fills every unset field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	setDefault(&s.ListenAddr, DefaultListenAddr)
	setDefault(&s.LogLevel, LogInfo)
	setDefault(&s.StaticDir, DefaultStaticDir)
	setDefault(&s.MaxUploadBytes, DefaultMaxUploadBytes)
	setDefault(&s.ReadHeaderTimeout, DefaultReadHeaderTimeout)
	setDefault(&s.ShutdownTimeout, DefaultShutdownTimeout)
	if len(s.CORSAllowedOrigins) == 0 {
		s.CORSAllowedOrigins = []string{"*"}
	}

	p := &cfg.Pipeline
	setDefault(&p.FFmpegPath, DefaultFFmpegPath)
	setDefault(&p.ScratchDir, filepath.Join(os.TempDir(), "audioscribe"))
	setDefault(&p.ChunkDuration, DefaultChunkDuration)
	setDefault(&p.ChunkThresholdBytes, DefaultChunkThresholdBytes)
	setDefault(&p.BitrateKbps, DefaultBitrateKbps)
	setDefault(&p.ChunkConcurrency, 1)
	setDefault(&p.TranscribeTimeout, DefaultTranscribeTimeout)

	setDefault(&cfg.Speakers.GapThreshold, DefaultGapThreshold)
	setDefault(&cfg.Speakers.MaxSpeakers, DefaultMaxSpeakers)

	setDefault(&cfg.Summary.MaxTokens, DefaultSummaryMaxTokens)
	setDefault(&cfg.Summary.OnFailure, SummaryFail)

	setDefault(&cfg.Telemetry.ServiceName, DefaultServiceName)
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}
