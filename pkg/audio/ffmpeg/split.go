package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/audioscribe/pkg/audio"
	"github.com/MrWong99/audioscribe/pkg/types"
)

// DefaultChunkDuration is the nominal length of each chunk.
const DefaultChunkDuration = 5 * time.Minute

// chunkInfix separates the source base name from the chunk index.
const chunkInfix = "_chunk_"

// Chunker splits audio into fixed-duration MP3 chunks using the ffmpeg
// segment muxer. Each chunk's timestamps restart at zero, so consumers must
// offset chunk-local times by index × [Chunker.ChunkDuration].
type Chunker struct {
	path     string
	duration time.Duration
	settings
}

// NewChunker returns a Chunker invoking the ffmpeg binary at path. A
// non-positive duration selects [DefaultChunkDuration].
func NewChunker(path string, duration time.Duration, opts ...Option) *Chunker {
	if duration <= 0 {
		duration = DefaultChunkDuration
	}
	return &Chunker{path: path, duration: duration, settings: newSettings(opts)}
}

// ChunkDuration returns the nominal duration of every chunk but the last.
func (c *Chunker) ChunkDuration() time.Duration { return c.duration }

// Split cuts in into consecutive chunks written next to it as
// <base>_chunk_NNN.mp3 and returns them in chronological order. The chunks
// cover the whole source without gaps or overlaps.
//
// Engine failures, and runs that produce no chunk at all, wrap
// [types.ErrSplit].
func (c *Chunker) Split(ctx context.Context, in audio.Asset) ([]audio.Asset, error) {
	dir := filepath.Dir(in.Path)
	prefix := in.Base() + chunkInfix
	pattern := filepath.Join(dir, prefix+"%03d"+audio.TargetExt)

	args := append(c.encodeArgs(in.Path),
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(c.duration.Seconds(), 'f', -1, 64),
		"-reset_timestamps", "1",
		pattern,
	)
	if output, err := c.runner.Run(ctx, c.path, args...); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrSplit, filepath.Base(in.Path), engineError(err, output))
	}

	paths, err := filepath.Glob(filepath.Join(dir, prefix+"*"+audio.TargetExt))
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %w", types.ErrSplit, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: engine produced no chunks for %s", types.ErrSplit, filepath.Base(in.Path))
	}
	if err := sortChunks(paths, prefix); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSplit, err)
	}

	chunks := make([]audio.Asset, 0, len(paths))
	for _, p := range paths {
		a, err := audio.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrSplit, err)
		}
		chunks = append(chunks, a)
	}
	return chunks, nil
}

// sortChunks orders chunk paths by their numeric index. Lexical order breaks
// once the index outgrows the zero padding.
func sortChunks(paths []string, prefix string) error {
	idx := make(map[string]int, len(paths))
	for _, p := range paths {
		n, err := chunkIndex(filepath.Base(p), prefix)
		if err != nil {
			return err
		}
		idx[p] = n
	}
	slices.SortFunc(paths, func(a, b string) int { return idx[a] - idx[b] })
	return nil
}

// chunkIndex parses NNN out of <prefix>NNN.mp3.
func chunkIndex(name, prefix string) (int, error) {
	num := strings.TrimSuffix(strings.TrimPrefix(name, prefix), audio.TargetExt)
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("unexpected chunk file %q", name)
	}
	return n, nil
}
