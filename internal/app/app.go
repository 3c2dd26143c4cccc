// Package app wires the audioscribe server together: scratch storage, the
// ffmpeg engine, provider factories, the pipeline orchestrator and the HTTP
// surface (API, front-end, health probes and metrics).
//
// Typical usage from main:
//
//	application, err := app.New(cfg, registry)
//	if err != nil { … }
//	go application.Run(ctx)
//	<-ctx.Done()
//	application.Shutdown(shutdownCtx)
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/audioscribe/internal/config"
	"github.com/MrWong99/audioscribe/internal/health"
	"github.com/MrWong99/audioscribe/internal/observe"
	"github.com/MrWong99/audioscribe/internal/pipeline"
	"github.com/MrWong99/audioscribe/internal/server"
	"github.com/MrWong99/audioscribe/internal/transcript"
	"github.com/MrWong99/audioscribe/pkg/audio/ffmpeg"
	"github.com/MrWong99/audioscribe/pkg/audio/scratch"
	"github.com/MrWong99/audioscribe/pkg/provider/llm"
	"github.com/MrWong99/audioscribe/pkg/provider/stt"
)

// App owns the HTTP servers and everything they serve.
type App struct {
	cfg      *config.Config
	registry *config.Registry

	runner   ffmpeg.Runner
	metrics  *observe.Metrics
	gatherer prometheus.Gatherer

	scratch *scratch.Dir
	orch    *pipeline.Orchestrator
	handler http.Handler

	server        *http.Server
	metricsServer *http.Server

	mu       sync.Mutex
	addr     net.Addr
	stopOnce sync.Once
}

// Option is a functional option for [New].
type Option func(*App)

// WithRunner replaces the ffmpeg process runner. Used by tests.
func WithRunner(r ffmpeg.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithGatherer sets the Prometheus gatherer behind /metrics. Defaults to
// [prometheus.DefaultGatherer].
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// New builds an App from cfg. Provider names in cfg are resolved through
// reg; an unregistered name is a startup error rather than a failure on the
// first request.
func New(cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, registry: reg}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.gatherer == nil {
		a.gatherer = prometheus.DefaultGatherer
	}

	var err error
	a.scratch, err = scratch.New(cfg.Pipeline.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a.orch, err = a.buildOrchestrator()
	if err != nil {
		return nil, err
	}

	a.handler = a.buildHandler()
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", a.metricsHandler())
		a.metricsServer = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		}
	}
	return a, nil
}

// buildOrchestrator resolves the configured providers and assembles the
// pipeline.
func (a *App) buildOrchestrator() (*pipeline.Orchestrator, error) {
	cfg := a.cfg
	sttEntry := cfg.Providers.STT
	if !a.registry.HasSTT(sttEntry.Name) {
		return nil, fmt.Errorf("app: stt provider %q: %w", sttEntry.Name, config.ErrProviderNotRegistered)
	}

	var engineOpts []ffmpeg.Option
	if a.runner != nil {
		engineOpts = append(engineOpts, ffmpeg.WithRunner(a.runner))
	}
	engineOpts = append(engineOpts, ffmpeg.WithBitrateKbps(cfg.Pipeline.BitrateKbps))

	opts := []pipeline.Option{
		pipeline.WithSTTName(sttEntry.Name),
		pipeline.WithAPIKey(sttEntry.APIKey),
		pipeline.WithChunkThreshold(cfg.Pipeline.ChunkThresholdBytes),
		pipeline.WithChunkConcurrency(cfg.Pipeline.ChunkConcurrency),
		pipeline.WithSpeakerOptions(transcript.SpeakerOptions{
			GapThreshold: cfg.Speakers.GapThreshold,
			MaxSpeakers:  cfg.Speakers.MaxSpeakers,
		}),
		pipeline.WithMetrics(a.metrics),
	}

	if llmEntry := cfg.Providers.LLM; llmEntry.Name != "" {
		if !a.registry.HasLLM(llmEntry.Name) {
			return nil, fmt.Errorf("app: llm provider %q: %w", llmEntry.Name, config.ErrProviderNotRegistered)
		}
		newLLM := func(apiKey string) (llm.Provider, error) {
			e := llmEntry
			if e.APIKey == "" {
				e.APIKey = apiKey
			}
			return a.registry.CreateLLM(e)
		}
		opts = append(opts, pipeline.WithSummarizer(llmEntry.Name, newLLM,
			pipeline.SummaryOptions{Prompt: cfg.Summary.Prompt, MaxTokens: cfg.Summary.MaxTokens},
			pipeline.FailurePolicy(cfg.Summary.OnFailure),
		))
	}

	newSTT := func(apiKey string) (stt.Provider, error) {
		e := sttEntry
		e.APIKey = apiKey
		return a.registry.CreateSTT(e)
	}

	return pipeline.New(a.scratch,
		ffmpeg.NewTranscoder(cfg.Pipeline.FFmpegPath, engineOpts...),
		ffmpeg.NewChunker(cfg.Pipeline.FFmpegPath, cfg.Pipeline.ChunkDuration, engineOpts...),
		newSTT,
		opts...,
	), nil
}

func (a *App) buildHandler() http.Handler {
	mux := http.NewServeMux()

	checks := health.New(
		health.Binary("ffmpeg", a.cfg.Pipeline.FFmpegPath),
		health.Func("scratch", a.scratch.CheckWritable),
	)
	checks.Register(mux)

	if a.cfg.Telemetry.MetricsAddr == "" {
		mux.Handle("GET /metrics", a.metricsHandler())
	}

	server.New(a.orch,
		server.WithStaticDir(a.cfg.Server.StaticDir),
		server.WithMaxUploadBytes(a.cfg.Server.MaxUploadBytes),
		server.WithCORSOrigins(a.cfg.Server.CORSAllowedOrigins...),
	).Register(mux)

	return observe.Middleware(a.metrics)(mux)
}

func (a *App) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})
}

// Handler returns the main HTTP handler, middleware included.
func (a *App) Handler() http.Handler { return a.handler }

// Orchestrator returns the pipeline serving /api/transcribe.
func (a *App) Orchestrator() *pipeline.Orchestrator { return a.orch }

// Addr returns the address the main listener is bound to, or nil before
// [App.Run] has bound it.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// Run binds the listeners and serves until ctx is cancelled or a server
// fails. It returns ctx.Err() after cancellation; call [App.Shutdown] to
// drain in-flight requests.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.server.Addr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()
	go func() { errCh <- serve(a.server, ln) }()
	slog.Info("http server listening", "addr", ln.Addr().String())

	if a.metricsServer != nil {
		mln, err := net.Listen("tcp", a.metricsServer.Addr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", a.metricsServer.Addr, err)
		}
		go func() { errCh <- serve(a.metricsServer, mln) }()
		slog.Info("metrics server listening", "addr", mln.Addr().String())
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: serve %s: %w", ln.Addr(), err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires. Requests still running afterwards keep their own
// detached context and finish their cleanup in the background.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		slog.Info("shutting down http servers")
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: shutdown http: %w", err))
		}
		if a.metricsServer != nil {
			if err := a.metricsServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("app: shutdown metrics: %w", err))
			}
		}
		slog.Info("shutdown complete")
	})
	return errors.Join(errs...)
}
