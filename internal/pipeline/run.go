package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/audioscribe/internal/observe"
	"github.com/MrWong99/audioscribe/internal/transcript"
	"github.com/MrWong99/audioscribe/pkg/audio"
	"github.com/MrWong99/audioscribe/pkg/audio/scratch"
	"github.com/MrWong99/audioscribe/pkg/provider/stt"
	"github.com/MrWong99/audioscribe/pkg/types"
)

// Run executes req and returns the assembled response. Errors wrap one of the
// sentinels in pkg/types; anything else is an internal failure.
//
// Run honours cancellation of ctx. Callers that must finish a request after
// the client goes away pass a detached context.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Response, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.Bool("speakers", req.IdentifySpeakers),
			attribute.Bool("summary", req.Summarize),
		),
	)
	defer span.End()

	resp, err := o.run(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = types.Kind(err)
		observe.FailSpan(span, err)
	}
	o.metrics.RecordTranscription(ctx, outcome)
	return resp, err
}

// job carries the per-request values threaded through the stages.
type job struct {
	req     Request
	apiKey  string
	ext     string
	session *scratch.Session
	log     *slog.Logger
}

func (o *Orchestrator) run(ctx context.Context, req Request) (*Response, error) {
	j, err := o.validate(req)
	if err != nil {
		return nil, err
	}

	sttProvider, err := o.newSTT(j.apiKey)
	if err != nil {
		return nil, fmt.Errorf("pipeline: create %s provider: %w", o.sttName, err)
	}

	o.metrics.ActiveTranscriptions.Add(ctx, 1)
	defer o.metrics.ActiveTranscriptions.Add(ctx, -1)

	j.session = o.scratch.NewSession()
	j.log = observe.Logger(ctx).With(slog.String("session", j.session.ID()))
	defer o.cleanup(ctx, j)

	// Received: persist the upload.
	var upload audio.Asset
	if err := o.stage(ctx, j, StageReceived, func(context.Context) error {
		upload, err = j.session.Save(req.Audio, j.ext)
		if err != nil {
			return fmt.Errorf("pipeline: store upload: %w", err)
		}
		o.metrics.UploadSize.Record(ctx, upload.Size)
		j.log.Info("upload received", "file", upload.String())
		return nil
	}); err != nil {
		return nil, err
	}

	var mp3 audio.Asset
	if err := o.stage(ctx, j, StageTranscoding, func(ctx context.Context) error {
		mp3, err = o.transcoder.Transcode(ctx, upload)
		return err
	}); err != nil {
		return nil, err
	}

	chunks := []audio.Asset{mp3}
	if mp3.Size > o.chunkThreshold {
		if err := o.stage(ctx, j, StageChunking, func(ctx context.Context) error {
			chunks, err = o.chunker.Split(ctx, mp3)
			if err == nil {
				j.log.Info("audio chunked", "chunks", len(chunks), "size", mp3.Size, "threshold", o.chunkThreshold)
			}
			return err
		}); err != nil {
			return nil, err
		}
	}

	var results []stt.Result
	if err := o.stage(ctx, j, StageTranscribing, func(ctx context.Context) error {
		results, err = o.transcribeAll(ctx, j, sttProvider, chunks)
		return err
	}); err != nil {
		return nil, err
	}

	var merged stt.Result
	_ = o.stage(ctx, j, StageMerging, func(context.Context) error {
		merged = transcript.Merge(results, o.chunker.ChunkDuration())
		return nil
	})

	resp := &Response{Text: merged.Text, Segments: merged.Segments}
	if resp.Segments == nil {
		resp.Segments = []stt.Segment{}
	}

	if req.IdentifySpeakers {
		_ = o.stage(ctx, j, StageDiarizing, func(context.Context) error {
			resp.SpeakerSegments = transcript.AssignSpeakers(merged.Segments, o.speakers)
			return nil
		})
	}

	if req.Summarize {
		err := o.stage(ctx, j, StageSummarizing, func(ctx context.Context) error {
			summary, serr := o.summarize(ctx, j, merged.Text)
			resp.Summary = summary
			return serr
		})
		if err != nil {
			if o.summaryPolicy != OmitSummary {
				return nil, err
			}
			j.log.Warn("summary omitted", "err", err)
			resp.Summary = ""
		}
	}

	return resp, nil
}

// validate checks the request before any file is written or remote call made.
func (o *Orchestrator) validate(req Request) (*job, error) {
	apiKey := o.apiKey
	if apiKey == "" {
		apiKey = req.APIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", types.ErrValidation)
	}
	if req.Audio == nil {
		return nil, fmt.Errorf("%w: no audio file provided", types.ErrValidation)
	}
	ext := audio.NormalizeExt(req.Filename)
	if !audio.IsSupported(ext) {
		return nil, fmt.Errorf("%w: unsupported file type %q", types.ErrValidation, ext)
	}
	if req.Summarize && o.newLLM == nil {
		return nil, fmt.Errorf("%w: summarization is not enabled on this server", types.ErrValidation)
	}
	return &job{req: req, apiKey: apiKey, ext: ext}, nil
}

// stage runs fn as the named stage, recording a span, the stage duration and
// a debug log line.
func (o *Orchestrator) stage(ctx context.Context, j *job, st Stage, fn func(context.Context) error) error {
	if o.stageHook != nil {
		o.stageHook(ctx, st)
	}
	ctx, span := observe.StartSpan(ctx, "pipeline."+string(st))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	o.metrics.RecordStage(ctx, string(st), elapsed.Seconds())

	if err != nil {
		observe.FailSpan(span, err)
		j.log.Error("stage failed", "stage", st, "kind", types.Kind(err), "duration", elapsed, "err", err)
		return err
	}
	j.log.Debug("stage done", "stage", st, "duration", elapsed)
	return nil
}

// transcribeAll transcribes chunks and returns their results in chunk order.
// With a concurrency of one the chunks are processed strictly one after the
// other; otherwise up to chunkConcurrency run at once and the first failure
// cancels the rest.
func (o *Orchestrator) transcribeAll(ctx context.Context, j *job, p stt.Provider, chunks []audio.Asset) ([]stt.Result, error) {
	results := make([]stt.Result, len(chunks))

	if o.chunkConcurrency <= 1 || len(chunks) == 1 {
		for i, c := range chunks {
			res, err := o.transcribeChunk(ctx, j, p, i, len(chunks), c)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.chunkConcurrency)
	for i, c := range chunks {
		g.Go(func() error {
			res, err := o.transcribeChunk(gctx, j, p, i, len(chunks), c)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) transcribeChunk(ctx context.Context, j *job, p stt.Provider, index, total int, chunk audio.Asset) (stt.Result, error) {
	start := time.Now()
	res, err := p.Transcribe(ctx, stt.Request{Path: chunk.Path, Language: j.req.Language})
	o.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	o.metrics.ChunksTranscribed.Add(ctx, 1)

	if err != nil {
		o.metrics.RecordProviderRequest(ctx, o.sttName, "stt", "error")
		o.metrics.RecordProviderError(ctx, o.sttName, "stt")
		return stt.Result{}, fmt.Errorf("transcribe chunk %d/%d: %w", index+1, total, err)
	}
	o.metrics.RecordProviderRequest(ctx, o.sttName, "stt", "ok")
	if res == nil {
		return stt.Result{}, nil
	}
	j.log.Debug("chunk transcribed", "chunk", index, "segments", len(res.Segments), "duration", time.Since(start))
	return *res, nil
}

// summarize produces the summary of text with a provider built for the
// request's credential.
func (o *Orchestrator) summarize(ctx context.Context, j *job, text string) (string, error) {
	provider, err := o.newLLM(j.apiKey)
	if err != nil {
		return "", fmt.Errorf("pipeline: create %s provider: %w", o.llmName, err)
	}

	start := time.Now()
	summary, err := NewLLMSummariser(provider, o.summary).Summarise(ctx, text)
	o.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordProviderRequest(ctx, o.llmName, "llm", "error")
		o.metrics.RecordProviderError(ctx, o.llmName, "llm")
		return "", err
	}
	o.metrics.RecordProviderRequest(ctx, o.llmName, "llm", "ok")
	return summary, nil
}

// cleanup removes every file of the request's session. Failures are logged
// and never reach the caller.
func (o *Orchestrator) cleanup(ctx context.Context, j *job) {
	if o.stageHook != nil {
		o.stageHook(ctx, StageCleanup)
	}
	start := time.Now()
	err := j.session.Cleanup()
	o.metrics.RecordStage(ctx, string(StageCleanup), time.Since(start).Seconds())
	if err != nil {
		j.log.Warn("scratch cleanup failed", "err", err)
		return
	}
	j.log.Debug("scratch cleaned up")
}
