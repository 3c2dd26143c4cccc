// Package stt defines the Provider interface for batch Speech-to-Text backends.
//
// An STT provider takes a finished audio file (typically one chunk of a larger
// recording) and returns the recognised text together with timestamped
// segments. Segment times are relative to the start of the submitted file;
// callers that transcribe consecutive chunks are responsible for shifting them
// onto a global timeline.
//
// Implementations must be safe for concurrent use. A single Provider may be
// asked to transcribe several chunks of the same recording in parallel.
package stt

import "context"

// Request describes one file to transcribe.
type Request struct {
	// Path is the local path of the audio file. The file must be in a format
	// the provider accepts (MP3 for every provider in this module).
	Path string

	// Language is an optional ISO-639-1 hint (e.g., "en", "zh"). Empty lets the
	// provider auto-detect.
	Language string

	// Prompt is optional context that biases recognition, such as the tail of
	// the previous chunk's transcript or a list of proper nouns.
	Prompt string
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe uploads the file named by req.Path and waits for the full
	// result. Segments in the result are ordered by Start.
	//
	// Errors wrap one of types.ErrAuth (credentials rejected), types.ErrTimeout
	// (the provider's own deadline elapsed) or types.ErrRemote (any other
	// failure reported by the service or the transport).
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
