// Package mock provides a fake ffmpeg.Runner that fabricates output files
// instead of invoking a real binary.
//
// The fake treats the last argument of every invocation as the output path.
// A path containing a printf verb (the segment muxer pattern) produces
// ChunkCount files; any other path produces one file of OutputSize bytes.
//
// Example:
//
//	r := &mock.Runner{OutputSize: 1024, ChunkCount: 3}
//	tc := ffmpeg.NewTranscoder("ffmpeg", ffmpeg.WithRunner(r))
package mock

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/MrWong99/audioscribe/pkg/audio/ffmpeg"
)

// Call records a single invocation of Run.
type Call struct {
	Name string
	Args []string
}

// Output returns the last argument of the call.
func (c Call) Output() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// Has reports whether the call's arguments contain flag immediately
// followed by value.
func (c Call) Has(flag, value string) bool {
	for i := 0; i+1 < len(c.Args); i++ {
		if c.Args[i] == flag && c.Args[i+1] == value {
			return true
		}
	}
	return false
}

// Runner is a mock implementation of ffmpeg.Runner.
type Runner struct {
	mu sync.Mutex

	// OutputSize is the size of each fabricated file. Zero writes empty files.
	OutputSize int64

	// ChunkCount is the number of files fabricated for a segment pattern.
	// Zero writes none.
	ChunkCount int

	// Err, if non-nil, is returned from Run without writing anything.
	Err error

	// Output is returned as the combined output of Run.
	Output []byte

	// Calls records every invocation in order.
	Calls []Call
}

// Run records the call and fabricates its output files.
func (r *Runner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := Call{Name: name, Args: append([]string(nil), args...)}
	r.Calls = append(r.Calls, call)
	if r.Err != nil {
		return r.Output, r.Err
	}

	out := call.Output()
	if strings.Contains(out, "%") {
		for i := range r.ChunkCount {
			if err := r.write(fmt.Sprintf(out, i)); err != nil {
				return nil, err
			}
		}
		return r.Output, nil
	}
	return r.Output, r.write(out)
}

// CallCount returns the number of recorded invocations.
func (r *Runner) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

func (r *Runner) write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if r.OutputSize > 0 {
		if err := f.Truncate(r.OutputSize); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// Ensure Runner implements ffmpeg.Runner at compile time.
var _ ffmpeg.Runner = (*Runner)(nil)
