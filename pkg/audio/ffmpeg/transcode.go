package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/MrWong99/audioscribe/pkg/audio"
	"github.com/MrWong99/audioscribe/pkg/types"
)

// Transcoder converts arbitrary audio containers to constant-bitrate MP3.
type Transcoder struct {
	path string
	settings
}

// NewTranscoder returns a Transcoder invoking the ffmpeg binary at path.
func NewTranscoder(path string, opts ...Option) *Transcoder {
	return &Transcoder{path: path, settings: newSettings(opts)}
}

// Transcode converts in to MP3 and returns the new asset, written next to in
// as <base>.mp3. An input that already is MP3 is returned unchanged without
// invoking the engine. The input file is never removed.
//
// Engine failures wrap [types.ErrConversion].
func (t *Transcoder) Transcode(ctx context.Context, in audio.Asset) (audio.Asset, error) {
	if in.Ext == audio.TargetExt {
		return in, nil
	}

	out := filepath.Join(filepath.Dir(in.Path), in.Base()+audio.TargetExt)
	args := append(t.encodeArgs(in.Path), "-f", "mp3", out)

	if output, err := t.runner.Run(ctx, t.path, args...); err != nil {
		return audio.Asset{}, fmt.Errorf("%w: %s: %w", types.ErrConversion, filepath.Base(in.Path), engineError(err, output))
	}

	asset, err := audio.Stat(out)
	if err != nil {
		return audio.Asset{}, fmt.Errorf("%w: engine produced no output: %w", types.ErrConversion, err)
	}
	return asset, nil
}
