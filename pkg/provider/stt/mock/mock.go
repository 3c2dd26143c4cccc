// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to return canned results and to inspect which files were
// submitted. Results can be fixed for every call or looked up per file.
//
// Example:
//
//	p := &mock.Provider{
//	    Result: &stt.Result{Text: "hello", Segments: []stt.Segment{{Start: 0, End: 1, Text: "hello"}}},
//	}
//	res, _ := p.Transcribe(ctx, stt.Request{Path: "chunk.mp3"})
package mock

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/MrWong99/audioscribe/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the request passed to Transcribe.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned from Transcribe when ResultFunc is nil. A nil Result
	// yields an empty, non-nil result.
	Result *stt.Result

	// ResultFunc, if set, computes the result per call. It receives the base
	// name of the submitted file and the zero-based call number.
	ResultFunc func(name string, call int) (*stt.Result, error)

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the configured result. ResultFunc
// runs without the lock held, so concurrent calls overlap.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	n := len(p.TranscribeCalls)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	err, fn, fixed := p.TranscribeErr, p.ResultFunc, p.Result
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(filepath.Base(req.Path), n)
	}
	if fixed == nil {
		return &stt.Result{}, nil
	}
	res := *fixed
	res.Segments = append([]stt.Segment(nil), fixed.Segments...)
	return &res, nil
}

// CallCount returns the number of recorded Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
