package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by [ApplyEnv].
// Nested sections extend it, e.g. AUDIOSCRIBE_PROVIDERS_STT_API_KEY.
const EnvPrefix = "AUDIOSCRIBE_"

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"openai"},
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path, overlays the process
// environment and returns a validated [Config]. An empty path skips the file
// and builds the configuration from the environment and defaults alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return finish(&Config{}, nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return finish(cfg, nil)
}

// LoadFromReader decodes a YAML config from r, overlays the variables in
// environ and validates the result. A nil environ reads the process
// environment. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader, environ map[string]string) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	return finish(cfg, environ)
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

func finish(cfg *Config, environ map[string]string) (*Config, error) {
	if err := ApplyEnv(cfg, environ); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields of cfg with the AUDIOSCRIBE_* variables present
// in environ. Unset variables leave the field untouched. A nil environ reads
// the process environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", cfg.Server.MaxUploadBytes))
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	if cfg.Providers.LLM.Name == "" {
		slog.Info("providers.llm is not configured; summarization requests will be rejected")
	}

	// Pipeline
	p := cfg.Pipeline
	if p.ChunkDuration < 0 {
		errs = append(errs, fmt.Errorf("pipeline.chunk_duration %s must be positive", p.ChunkDuration))
	}
	if p.ChunkThresholdBytes < 0 {
		errs = append(errs, fmt.Errorf("pipeline.chunk_threshold_bytes %d must be positive", p.ChunkThresholdBytes))
	}
	if p.BitrateKbps != 0 && (p.BitrateKbps < 8 || p.BitrateKbps > 320) {
		errs = append(errs, fmt.Errorf("pipeline.bitrate_kbps %d is out of range [8, 320]", p.BitrateKbps))
	}
	if p.ChunkConcurrency < 0 {
		errs = append(errs, fmt.Errorf("pipeline.chunk_concurrency %d must be at least 1", p.ChunkConcurrency))
	}
	if p.TranscribeTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.transcribe_timeout %s must be positive", p.TranscribeTimeout))
	}

	// Speakers
	if cfg.Speakers.GapThreshold < 0 {
		errs = append(errs, fmt.Errorf("speakers.gap_threshold %.2f must not be negative", cfg.Speakers.GapThreshold))
	}
	if cfg.Speakers.MaxSpeakers < 0 {
		errs = append(errs, fmt.Errorf("speakers.max_speakers %d must be at least 1", cfg.Speakers.MaxSpeakers))
	}

	// Summary
	if cfg.Summary.OnFailure != "" && !cfg.Summary.OnFailure.IsValid() {
		errs = append(errs, fmt.Errorf("summary.on_failure %q is invalid; valid values: fail, omit", cfg.Summary.OnFailure))
	}
	if cfg.Summary.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("summary.max_tokens %d must not be negative", cfg.Summary.MaxTokens))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
