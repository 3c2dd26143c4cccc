// Package ffmpeg normalises and splits audio files by shelling out to the
// ffmpeg binary.
//
// The binary path and the process runner are explicit construction
// parameters: nothing in this package reads global state, so tests can
// substitute a fake [Runner] that fabricates output files.
//
// Usage:
//
//	tc := ffmpeg.NewTranscoder("/usr/bin/ffmpeg", ffmpeg.WithBitrateKbps(128))
//	mp3, err := tc.Transcode(ctx, upload)
//
//	ch := ffmpeg.NewChunker("/usr/bin/ffmpeg", 5*time.Minute)
//	chunks, err := ch.Split(ctx, mp3)
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const (
	defaultBitrateKbps = 128

	// targetCodec is the encoder used for every output file.
	targetCodec = "libmp3lame"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with [exec.CommandContext].
type ExecRunner struct{}

// Run implements [Runner].
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// settings is shared by Transcoder and Chunker.
type settings struct {
	runner      Runner
	bitrateKbps int
}

// Option is a functional option for [Transcoder] and [Chunker].
type Option func(*settings)

// WithRunner replaces the process runner. Defaults to [ExecRunner].
func WithRunner(r Runner) Option {
	return func(s *settings) {
		if r != nil {
			s.runner = r
		}
	}
}

// WithBitrateKbps sets the constant output bitrate. Defaults to 128.
func WithBitrateKbps(kbps int) Option {
	return func(s *settings) {
		if kbps > 0 {
			s.bitrateKbps = kbps
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{runner: ExecRunner{}, bitrateKbps: defaultBitrateKbps}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// encodeArgs returns the input and encoder arguments common to every
// invocation.
func (s settings) encodeArgs(input string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vn",
		"-c:a", targetCodec,
		"-b:a", fmt.Sprintf("%dk", s.bitrateKbps),
	}
}

// Available reports whether the ffmpeg binary at path can be resolved.
func Available(path string) error {
	if _, err := exec.LookPath(path); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// lastLine returns the last non-empty line of engine output, which is where
// ffmpeg prints the fatal error with -loglevel error.
func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// engineError formats a runner failure, appending the engine's own message
// when it printed one.
func engineError(err error, out []byte) error {
	if msg := lastLine(out); msg != "" {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return err
}
