// Package types defines the error kinds shared across audioscribe packages.
//
// Every failure surfaced by the transcription pipeline wraps exactly one of
// the sentinel errors below so that callers (the HTTP layer, metrics, tests)
// can classify it with [errors.Is] without depending on the package that
// produced it. Producers wrap both the kind and the underlying cause:
//
//	return fmt.Errorf("%w: ffmpeg exited: %w", types.ErrConversion, err)
package types

import "errors"

var (
	// ErrValidation marks malformed client input: a missing file, a missing
	// credential, or an unsupported file extension.
	ErrValidation = errors.New("invalid request")

	// ErrConversion marks a failure of the local transcoding engine while
	// normalising the upload to the target codec.
	ErrConversion = errors.New("audio conversion failed")

	// ErrSplit marks a failure of the local transcoding engine while cutting
	// an oversized asset into chunks.
	ErrSplit = errors.New("audio split failed")

	// ErrAuth marks a rejected credential at a remote API.
	ErrAuth = errors.New("remote API rejected credentials")

	// ErrRemote marks any other non-2xx answer from a remote API, including
	// rate limiting.
	ErrRemote = errors.New("remote API error")

	// ErrTimeout marks a remote call that produced no response within its
	// bounded wait.
	ErrTimeout = errors.New("remote API timed out")
)

// kinds is the classification order used by [Kind].
var kinds = []struct {
	err  error
	name string
}{
	{ErrValidation, "validation"},
	{ErrConversion, "conversion"},
	{ErrSplit, "split"},
	{ErrAuth, "auth"},
	{ErrRemote, "remote"},
	{ErrTimeout, "timeout"},
}

// Kind returns a short, stable label for the error kind wrapped by err, for
// use as a metric attribute or log field. It returns "internal" for errors
// that carry none of the sentinels and "" for a nil error.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}
