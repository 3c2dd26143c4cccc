package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/audioscribe/pkg/audio"
	"github.com/MrWong99/audioscribe/pkg/audio/ffmpeg"
	"github.com/MrWong99/audioscribe/pkg/audio/ffmpeg/mock"
	"github.com/MrWong99/audioscribe/pkg/types"
)

func writeInput(t *testing.T, name string, size int) audio.Asset {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatal(err)
	}
	a, err := audio.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestTranscode_MP3Passthrough(t *testing.T) {
	t.Parallel()

	r := &mock.Runner{}
	tc := ffmpeg.NewTranscoder("ffmpeg", ffmpeg.WithRunner(r))
	in := writeInput(t, "talk.mp3", 64)

	out, err := tc.Transcode(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Errorf("got %+v, want unchanged %+v", out, in)
	}
	if r.CallCount() != 0 {
		t.Errorf("engine invoked %d times for mp3 input", r.CallCount())
	}
}

func TestTranscode_ConvertsToMP3(t *testing.T) {
	t.Parallel()

	r := &mock.Runner{OutputSize: 2048}
	tc := ffmpeg.NewTranscoder("/opt/ffmpeg", ffmpeg.WithRunner(r), ffmpeg.WithBitrateKbps(192))
	in := writeInput(t, "talk.wav", 10)

	out, err := tc.Transcode(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Ext != ".mp3" || out.Size != 2048 {
		t.Errorf("got %+v, want .mp3 of 2048 bytes", out)
	}
	if filepath.Dir(out.Path) != filepath.Dir(in.Path) {
		t.Errorf("output %q not next to input %q", out.Path, in.Path)
	}
	if _, err := os.Stat(in.Path); err != nil {
		t.Errorf("input removed: %v", err)
	}

	if r.CallCount() != 1 {
		t.Fatalf("calls = %d, want 1", r.CallCount())
	}
	call := r.Calls[0]
	if call.Name != "/opt/ffmpeg" {
		t.Errorf("binary = %q", call.Name)
	}
	for _, kv := range [][2]string{{"-i", in.Path}, {"-c:a", "libmp3lame"}, {"-b:a", "192k"}, {"-f", "mp3"}} {
		if !call.Has(kv[0], kv[1]) {
			t.Errorf("args %v missing %s %s", call.Args, kv[0], kv[1])
		}
	}
}

func TestTranscode_EngineFailure(t *testing.T) {
	t.Parallel()

	r := &mock.Runner{Err: errors.New("exit status 1"), Output: []byte("talk.ogg: Invalid data found when processing input\n")}
	tc := ffmpeg.NewTranscoder("ffmpeg", ffmpeg.WithRunner(r))

	_, err := tc.Transcode(context.Background(), writeInput(t, "talk.ogg", 10))
	if !errors.Is(err, types.ErrConversion) {
		t.Fatalf("got %v, want ErrConversion", err)
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Errorf("engine message missing from %q", err)
	}
}

func TestSplit_OrderedChunks(t *testing.T) {
	t.Parallel()

	r := &mock.Runner{OutputSize: 100, ChunkCount: 3}
	ch := ffmpeg.NewChunker("ffmpeg", 0, ffmpeg.WithRunner(r))
	if ch.ChunkDuration() != ffmpeg.DefaultChunkDuration {
		t.Errorf("ChunkDuration = %v, want default", ch.ChunkDuration())
	}
	in := writeInput(t, "abc.mp3", 10)

	chunks, err := ch.Split(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	for i, c := range chunks {
		want := "abc_chunk_00" + string(rune('0'+i)) + ".mp3"
		if filepath.Base(c.Path) != want {
			t.Errorf("chunk %d = %q, want %q", i, filepath.Base(c.Path), want)
		}
	}

	call := r.Calls[0]
	for _, kv := range [][2]string{{"-f", "segment"}, {"-segment_time", "300"}, {"-reset_timestamps", "1"}} {
		if !call.Has(kv[0], kv[1]) {
			t.Errorf("args %v missing %s %s", call.Args, kv[0], kv[1])
		}
	}
}

func TestSplit_NumericOrderBeyondPadding(t *testing.T) {
	t.Parallel()

	r := &mock.Runner{ChunkCount: 1002}
	ch := ffmpeg.NewChunker("ffmpeg", time.Second, ffmpeg.WithRunner(r))

	chunks, err := ch.Split(context.Background(), writeInput(t, "long.mp3", 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := filepath.Base(chunks[len(chunks)-1].Path); got != "long_chunk_1001.mp3" {
		t.Errorf("last chunk = %q, want long_chunk_1001.mp3", got)
	}
	if got := filepath.Base(chunks[999].Path); got != "long_chunk_999.mp3" {
		t.Errorf("chunk 999 = %q", got)
	}
}

func TestSplit_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		runner *mock.Runner
	}{
		{name: "engine error", runner: &mock.Runner{Err: errors.New("exit status 1")}},
		{name: "no chunks", runner: &mock.Runner{ChunkCount: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ch := ffmpeg.NewChunker("ffmpeg", time.Minute, ffmpeg.WithRunner(tt.runner))
			_, err := ch.Split(context.Background(), writeInput(t, "x.mp3", 10))
			if !errors.Is(err, types.ErrSplit) {
				t.Fatalf("got %v, want ErrSplit", err)
			}
		})
	}
}

func TestAvailable_Missing(t *testing.T) {
	t.Parallel()

	if err := ffmpeg.Available(filepath.Join(t.TempDir(), "no-such-ffmpeg")); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
