package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/audioscribe/internal/config"
	"github.com/MrWong99/audioscribe/pkg/provider/llm"
	"github.com/MrWong99/audioscribe/pkg/provider/stt"
	sttmock "github.com/MrWong99/audioscribe/pkg/provider/stt/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: debug
  static_dir: web/dist
  max_upload_bytes: 524288000
  cors_allowed_origins: ["https://app.example.com"]

providers:
  stt:
    name: openai
    model: whisper-1
    options:
      language: de
      prompt: Glossary terms
  llm:
    name: anthropic
    api_key: sk-ant-test
    model: claude-3-5-haiku-latest

pipeline:
  ffmpeg_path: /usr/local/bin/ffmpeg
  scratch_dir: /var/tmp/audioscribe
  chunk_duration: 2m
  chunk_threshold_bytes: 10485760
  bitrate_kbps: 64
  chunk_concurrency: 4
  transcribe_timeout: 90s

speakers:
  gap_threshold: 1.5
  max_speakers: 3

summary:
  prompt: Summarise briefly.
  max_tokens: 300
  on_failure: omit

telemetry:
  service_name: scribe-test
  metrics_addr: ":9090"
`

// noEnv is an empty environment so tests never see the process environment.
var noEnv = map[string]string{}

func load(t *testing.T, yaml string, environ map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml), environ)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cfg
}

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	cfg := load(t, sampleYAML, noEnv)

	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.MaxUploadBytes != 500<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.Server.MaxUploadBytes)
	}
	if got := cfg.Server.CORSAllowedOrigins; len(got) != 1 || got[0] != "https://app.example.com" {
		t.Errorf("CORSAllowedOrigins = %v", got)
	}
	if cfg.Providers.STT.OptString("language") != "de" || cfg.Providers.STT.OptString("prompt") != "Glossary terms" {
		t.Errorf("stt options = %v", cfg.Providers.STT.Options)
	}
	if cfg.Providers.LLM.Name != "anthropic" || cfg.Providers.LLM.APIKey != "sk-ant-test" {
		t.Errorf("llm = %+v", cfg.Providers.LLM)
	}
	p := cfg.Pipeline
	if p.ChunkDuration != 2*time.Minute || p.TranscribeTimeout != 90*time.Second {
		t.Errorf("durations = %s, %s", p.ChunkDuration, p.TranscribeTimeout)
	}
	if p.ChunkThresholdBytes != 10<<20 || p.BitrateKbps != 64 || p.ChunkConcurrency != 4 {
		t.Errorf("pipeline = %+v", p)
	}
	if cfg.Speakers.GapThreshold != 1.5 || cfg.Speakers.MaxSpeakers != 3 {
		t.Errorf("speakers = %+v", cfg.Speakers)
	}
	if cfg.Summary.OnFailure != config.SummaryOmit || cfg.Summary.MaxTokens != 300 {
		t.Errorf("summary = %+v", cfg.Summary)
	}
	if cfg.Telemetry.MetricsAddr != ":9090" {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg := load(t, "providers:\n  stt:\n    name: openai\n", noEnv)

	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Server.StaticDir != config.DefaultStaticDir {
		t.Errorf("StaticDir = %q", cfg.Server.StaticDir)
	}
	if got := cfg.Server.CORSAllowedOrigins; len(got) != 1 || got[0] != "*" {
		t.Errorf("CORSAllowedOrigins = %v", got)
	}
	if cfg.Pipeline.ChunkDuration != 5*time.Minute {
		t.Errorf("ChunkDuration = %s", cfg.Pipeline.ChunkDuration)
	}
	if cfg.Pipeline.ChunkThresholdBytes != 25*1024*1024 {
		t.Errorf("ChunkThresholdBytes = %d", cfg.Pipeline.ChunkThresholdBytes)
	}
	if cfg.Pipeline.ChunkConcurrency != 1 || cfg.Pipeline.BitrateKbps != 128 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.ScratchDir != filepath.Join(os.TempDir(), "audioscribe") {
		t.Errorf("ScratchDir = %q", cfg.Pipeline.ScratchDir)
	}
	if cfg.Speakers.GapThreshold != 2.0 || cfg.Speakers.MaxSpeakers != 5 {
		t.Errorf("speakers = %+v", cfg.Speakers)
	}
	if cfg.Summary.OnFailure != config.SummaryFail || cfg.Summary.MaxTokens != 500 {
		t.Errorf("summary = %+v", cfg.Summary)
	}
	if cfg.Telemetry.ServiceName != "audioscribe" {
		t.Errorf("ServiceName = %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_adr: \":1\"\n"), noEnv)
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "listen_adr") {
		t.Errorf("error should name the field, got: %v", err)
	}
}

func TestLoadFromReader_EmptyDocumentUsesEnv(t *testing.T) {
	t.Parallel()
	cfg := load(t, "", map[string]string{"AUDIOSCRIBE_PROVIDERS_STT_NAME": "openai"})
	if cfg.Providers.STT.Name != "openai" {
		t.Errorf("STT.Name = %q", cfg.Providers.STT.Name)
	}
}

// ── Environment overlay ───────────────────────────────────────────────────────

func TestLoadFromReader_EnvOverridesFile(t *testing.T) {
	t.Parallel()
	cfg := load(t, sampleYAML, map[string]string{
		"AUDIOSCRIBE_SERVER_LISTEN_ADDR":          ":9999",
		"AUDIOSCRIBE_SERVER_CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example",
		"AUDIOSCRIBE_PROVIDERS_STT_API_KEY":       "sk-server",
		"AUDIOSCRIBE_PROVIDERS_LLM_NAME":          "openai",
		"AUDIOSCRIBE_PIPELINE_CHUNK_DURATION":     "30s",
		"AUDIOSCRIBE_PIPELINE_CHUNK_CONCURRENCY":  "2",
		"AUDIOSCRIBE_SPEAKERS_GAP_THRESHOLD":      "0.75",
		"AUDIOSCRIBE_SUMMARY_ON_FAILURE":          "fail",
	})

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if got := cfg.Server.CORSAllowedOrigins; len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("CORSAllowedOrigins = %v", got)
	}
	if cfg.Providers.STT.APIKey != "sk-server" || cfg.Providers.STT.Model != "whisper-1" {
		t.Errorf("stt = %+v", cfg.Providers.STT)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.APIKey != "sk-ant-test" {
		t.Errorf("llm = %+v", cfg.Providers.LLM)
	}
	if cfg.Pipeline.ChunkDuration != 30*time.Second || cfg.Pipeline.ChunkConcurrency != 2 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.BitrateKbps != 64 {
		t.Errorf("untouched BitrateKbps = %d, want file value 64", cfg.Pipeline.BitrateKbps)
	}
	if cfg.Speakers.GapThreshold != 0.75 {
		t.Errorf("GapThreshold = %v", cfg.Speakers.GapThreshold)
	}
	if cfg.Summary.OnFailure != config.SummaryFail {
		t.Errorf("OnFailure = %q", cfg.Summary.OnFailure)
	}
}

func TestLoadFromReader_BadEnvValue(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(sampleYAML), map[string]string{
		"AUDIOSCRIBE_PIPELINE_CHUNK_DURATION": "five minutes",
	})
	if err == nil {
		t.Fatal("expected error for unparseable duration, got nil")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audioscribe.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUDIOSCRIBE_SERVER_LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.LogLevel != config.LogWarn {
		t.Errorf("LogLevel = %q, want env override", cfg.Server.LogLevel)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v, want ErrNotExist", err)
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "missing stt",
			yaml: "server:\n  log_level: info\n",
			want: []string{"providers.stt.name is required"},
		},
		{
			name: "bad log level",
			yaml: "server:\n  log_level: loud\nproviders:\n  stt:\n    name: openai\n",
			want: []string{"server.log_level"},
		},
		{
			name: "bad policy",
			yaml: "providers:\n  stt:\n    name: openai\nsummary:\n  on_failure: retry\n",
			want: []string{"summary.on_failure"},
		},
		{
			name: "several",
			yaml: "providers:\n  stt:\n    name: openai\npipeline:\n  bitrate_kbps: 1000\n  chunk_concurrency: -1\nspeakers:\n  gap_threshold: -1\n",
			want: []string{"pipeline.bitrate_kbps", "pipeline.chunk_concurrency", "speakers.gap_threshold"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml), noEnv)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %q, got: %v", w, err)
				}
			}
		})
	}
}

func TestValidate_UnknownProviderIsOnlyAWarning(t *testing.T) {
	t.Parallel()
	cfg := load(t, "providers:\n  stt:\n    name: my-whisper-proxy\n", noEnv)
	if cfg.Providers.STT.Name != "my-whisper-proxy" {
		t.Errorf("STT.Name = %q", cfg.Providers.STT.Name)
	}
}

func TestOptString(t *testing.T) {
	t.Parallel()
	e := config.ProviderEntry{Options: map[string]any{"language": "fr", "temperature": 0.2}}
	if e.OptString("language") != "fr" {
		t.Error("language not returned")
	}
	if e.OptString("temperature") != "" || e.OptString("missing") != "" {
		t.Error("non-string or missing option should be empty")
	}
	if (config.ProviderEntry{}).OptString("x") != "" {
		t.Error("nil options should be empty")
	}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegistry_CreateSTT(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := &sttmock.Provider{}
	var got config.ProviderEntry
	reg.RegisterSTT("fake", func(e config.ProviderEntry) (stt.Provider, error) {
		got = e
		return want, nil
	})

	p, err := reg.CreateSTT(config.ProviderEntry{Name: "fake", APIKey: "sk-req"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != want {
		t.Error("factory result not returned")
	}
	if got.APIKey != "sk-req" {
		t.Errorf("factory saw APIKey %q", got.APIKey)
	}
	if !reg.HasSTT("fake") || reg.HasSTT("other") {
		t.Error("HasSTT mismatch")
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT: got %v", err)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM: got %v", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterLLM("bad", func(config.ProviderEntry) (llm.Provider, error) { return nil, boom })

	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "bad"}); !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	for _, n := range []string{"openai", "anthropic", "ollama"} {
		reg.RegisterLLM(n, func(config.ProviderEntry) (llm.Provider, error) { return nil, nil })
	}
	reg.RegisterSTT("openai", func(config.ProviderEntry) (stt.Provider, error) { return nil, nil })

	if got := strings.Join(reg.Names("llm"), ","); got != "anthropic,ollama,openai" {
		t.Errorf("llm names = %s", got)
	}
	if got := strings.Join(reg.Names("stt"), ","); got != "openai" {
		t.Errorf("stt names = %s", got)
	}
	if len(reg.Names("tts")) != 0 {
		t.Error("unknown kind should be empty")
	}
}
