package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/audioscribe/pkg/provider/llm"
)

// DefaultSummaryPrompt is the system prompt sent with every summary request
// unless configured otherwise.
const DefaultSummaryPrompt = `You are a meeting assistant. Summarise the following transcript.
Cover the main topics, any decisions taken and any action items with their owners.
Write the summary in the same language as the transcript. Be concise.`

// DefaultSummaryMaxTokens caps the length of a generated summary.
const DefaultSummaryMaxTokens = 500

// promptMargin is the token headroom kept free for message framing when the
// transcript is fitted into the model's context window.
const promptMargin = 64

// SummaryOptions configures [LLMSummariser].
type SummaryOptions struct {
	// Prompt is the system instruction. Empty selects DefaultSummaryPrompt.
	Prompt string

	// MaxTokens caps the reply. Zero selects DefaultSummaryMaxTokens.
	MaxTokens int
}

// Summariser produces a concise summary of a transcript.
type Summariser interface {
	Summarise(ctx context.Context, text string) (string, error)
}

// LLMSummariser uses an LLM provider to summarise transcripts.
type LLMSummariser struct {
	llm       llm.Provider
	prompt    string
	maxTokens int
}

// Ensure LLMSummariser implements Summariser at compile time.
var _ Summariser = (*LLMSummariser)(nil)

// NewLLMSummariser creates a new [LLMSummariser] backed by the given provider.
func NewLLMSummariser(provider llm.Provider, opts SummaryOptions) *LLMSummariser {
	s := &LLMSummariser{llm: provider, prompt: opts.Prompt, maxTokens: opts.MaxTokens}
	if s.prompt == "" {
		s.prompt = DefaultSummaryPrompt
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultSummaryMaxTokens
	}
	return s
}

// Summarise sends text to the LLM with the summary prompt and returns the
// reply. An empty transcript yields an empty summary without a remote call.
//
// The reply is capped at the configured token limit, lowered to the model's
// own output limit when that is smaller. A transcript that would overflow
// the context window is truncated from the end.
func (s *LLMSummariser) Summarise(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	caps := s.llm.Capabilities()
	maxTokens := s.maxTokens
	if caps.MaxOutputTokens > 0 {
		maxTokens = min(maxTokens, caps.MaxOutputTokens)
	}
	if caps.ContextWindow > 0 {
		budget := caps.ContextWindow - maxTokens - llm.EstimateTokens(s.prompt) - promptMargin
		if fitted, cut := fitTokens(text, budget); cut {
			slog.Warn("transcript truncated for summary",
				"tokens", llm.EstimateTokens(text), "budget", budget)
			text = fitted
		}
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: s.prompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: text},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarise: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

// fitTokens shortens text until its estimate is within budget, cutting on a
// rune boundary. It reports whether anything was removed.
func fitTokens(text string, budget int) (string, bool) {
	if budget <= 0 || llm.EstimateTokens(text) <= budget {
		return text, false
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if llm.EstimateTokens(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo]), true
}
