// Package pipeline runs one transcription request end to end.
//
// An [Orchestrator] takes an uploaded audio stream through a fixed sequence
// of stages:
//
//	Received → Transcoding → (Chunking) → Transcribing → Merging →
//	(Diarizing) → (Summarizing) → Cleanup
//
// Stages run strictly in order and are never re-entered. Any failure skips
// straight to Cleanup and the partial result is discarded. Cleanup always
// removes every scratch file the request produced; a cleanup failure is
// logged and never changes the outcome.
//
// The Orchestrator holds no per-request state and is safe for concurrent
// use. Remote providers are built per request from the caller's credential
// through the factories passed to [New].
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/MrWong99/audioscribe/internal/observe"
	"github.com/MrWong99/audioscribe/internal/transcript"
	"github.com/MrWong99/audioscribe/pkg/audio"
	"github.com/MrWong99/audioscribe/pkg/audio/scratch"
	"github.com/MrWong99/audioscribe/pkg/provider/llm"
	"github.com/MrWong99/audioscribe/pkg/provider/stt"
)

// DefaultChunkThreshold is the transcoded size above which audio is split
// before transcription. It matches the upload limit of the OpenAI audio API.
const DefaultChunkThreshold int64 = 25 * 1024 * 1024

// Stage names a step of the pipeline state machine.
type Stage string

// Pipeline stages in execution order.
const (
	StageReceived     Stage = "received"
	StageTranscoding  Stage = "transcoding"
	StageChunking     Stage = "chunking"
	StageTranscribing Stage = "transcribing"
	StageMerging      Stage = "merging"
	StageDiarizing    Stage = "diarizing"
	StageSummarizing  Stage = "summarizing"
	StageCleanup      Stage = "cleanup"
)

// Transcoder normalises an asset to MP3. Implemented by ffmpeg.Transcoder.
type Transcoder interface {
	Transcode(ctx context.Context, in audio.Asset) (audio.Asset, error)
}

// Chunker splits an asset into fixed-duration pieces. Implemented by
// ffmpeg.Chunker. ChunkDuration is the single source of the offset applied
// when chunk results are merged.
type Chunker interface {
	Split(ctx context.Context, in audio.Asset) ([]audio.Asset, error)
	ChunkDuration() time.Duration
}

// STTFactory builds a speech-to-text provider for one request's credential.
type STTFactory func(apiKey string) (stt.Provider, error)

// LLMFactory builds a language model provider for one request's credential.
type LLMFactory func(apiKey string) (llm.Provider, error)

// FailurePolicy decides what a failed summary does to the request.
type FailurePolicy string

const (
	// FailRequest fails the whole request when summarisation fails.
	FailRequest FailurePolicy = "fail"
	// OmitSummary returns the transcript without a summary instead.
	OmitSummary FailurePolicy = "omit"
)

// Request is one transcription job.
type Request struct {
	// Audio is the uploaded file content.
	Audio io.Reader

	// Filename is the client-side name of the upload. Only its extension is
	// used.
	Filename string

	// APIKey is the credential forwarded to the remote providers. It may be
	// empty when the orchestrator carries a server-side key.
	APIKey string

	// Language optionally overrides the transcription language hint.
	Language string

	// IdentifySpeakers requests pause-based speaker labels.
	IdentifySpeakers bool

	// Summarize requests an LLM summary of the transcript.
	Summarize bool
}

// Response is the assembled result of a successful run. It is the JSON body
// returned to HTTP clients.
type Response struct {
	Text            string                      `json:"text"`
	Segments        []stt.Segment               `json:"segments"`
	SpeakerSegments []transcript.SpeakerSegment `json:"speakerSegments,omitempty"`
	Summary         string                      `json:"summary,omitempty"`
}

// Orchestrator runs transcription requests.
type Orchestrator struct {
	scratch    *scratch.Dir
	transcoder Transcoder
	chunker    Chunker
	newSTT     STTFactory

	sttName          string
	apiKey           string
	chunkThreshold   int64
	chunkConcurrency int
	speakers         transcript.SpeakerOptions

	llmName       string
	newLLM        LLMFactory
	summary       SummaryOptions
	summaryPolicy FailurePolicy

	metrics   *observe.Metrics
	stageHook func(context.Context, Stage)
}

// Option is a functional option for [New].
type Option func(*Orchestrator)

// WithSTTName sets the provider label used in metrics and logs.
func WithSTTName(name string) Option {
	return func(o *Orchestrator) { o.sttName = name }
}

// WithAPIKey sets a server-side credential. When set it is used for every
// request and the client's key is ignored.
func WithAPIKey(key string) Option {
	return func(o *Orchestrator) { o.apiKey = key }
}

// WithChunkThreshold sets the size in bytes above which audio is chunked.
// Defaults to [DefaultChunkThreshold].
func WithChunkThreshold(n int64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.chunkThreshold = n
		}
	}
}

// WithChunkConcurrency sets how many chunks are transcribed at once.
// Defaults to 1 (strictly sequential).
func WithChunkConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.chunkConcurrency = n
		}
	}
}

// WithSpeakerOptions sets the speaker heuristic parameters.
func WithSpeakerOptions(opts transcript.SpeakerOptions) Option {
	return func(o *Orchestrator) { o.speakers = opts }
}

// WithSummarizer enables summarisation through the named LLM provider.
// Without it, requests asking for a summary are rejected.
func WithSummarizer(name string, factory LLMFactory, opts SummaryOptions, policy FailurePolicy) Option {
	return func(o *Orchestrator) {
		o.llmName = name
		o.newLLM = factory
		o.summary = opts
		if policy != "" {
			o.summaryPolicy = policy
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithStageHook registers fn to be called on entry to every stage.
func WithStageHook(fn func(context.Context, Stage)) Option {
	return func(o *Orchestrator) { o.stageHook = fn }
}

// New creates an Orchestrator storing request files under dir.
func New(dir *scratch.Dir, tc Transcoder, ch Chunker, newSTT STTFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		scratch:          dir,
		transcoder:       tc,
		chunker:          ch,
		newSTT:           newSTT,
		sttName:          "stt",
		chunkThreshold:   DefaultChunkThreshold,
		chunkConcurrency: 1,
		summaryPolicy:    FailRequest,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// SummaryEnabled reports whether requests may ask for a summary.
func (o *Orchestrator) SummaryEnabled() bool { return o.newLLM != nil }
