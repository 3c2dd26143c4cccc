// Package audio defines the file-level audio asset handled by the
// transcription pipeline and the container formats the service accepts.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// TargetExt is the container every upload is normalised to before it is sent
// to the transcription API.
const TargetExt = ".mp3"

// SupportedExtensions lists the upload extensions accepted by the service, in
// lower case and including the leading dot.
var SupportedExtensions = []string{".mp3", ".wav", ".m4a", ".aac", ".ogg", ".flac", ".mp4"}

// Asset is an audio file in scratch storage.
type Asset struct {
	// Path is the absolute path of the file.
	Path string

	// Ext is the lower-cased extension of Path including the leading dot.
	Ext string

	// Size is the file size in bytes.
	Size int64
}

// Base returns the file name of a without its extension.
func (a Asset) Base() string {
	return strings.TrimSuffix(filepath.Base(a.Path), filepath.Ext(a.Path))
}

// String returns a short representation for logging.
func (a Asset) String() string {
	return fmt.Sprintf("%s (%d bytes)", filepath.Base(a.Path), a.Size)
}

// Stat builds an [Asset] for the file at path.
func Stat(path string) (Asset, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Asset{}, fmt.Errorf("audio: stat %q: %w", path, err)
	}
	if fi.IsDir() {
		return Asset{}, fmt.Errorf("audio: %q is a directory", path)
	}
	return Asset{
		Path: path,
		Ext:  strings.ToLower(filepath.Ext(path)),
		Size: fi.Size(),
	}, nil
}

// NormalizeExt returns the lower-cased extension of name including the dot.
func NormalizeExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsSupported reports whether ext (as returned by [NormalizeExt]) is one of
// [SupportedExtensions].
func IsSupported(ext string) bool {
	return slices.Contains(SupportedExtensions, ext)
}
