// Package scratch manages the transient per-request files of the
// transcription pipeline.
//
// A [Dir] is a shared root directory. Each request opens its own [Session],
// identified by a random UUID; every file the request writes (the upload,
// the transcoded asset, the chunks) is named with that UUID as prefix so that
// [Session.Cleanup] can find and remove all of them, including files written
// by an external engine that failed half-way.
package scratch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/MrWong99/audioscribe/pkg/audio"
)

// Dir is a scratch root directory. It is safe for concurrent use; sessions
// never share files.
type Dir struct {
	root string
}

// New returns a [Dir] rooted at root, creating the directory if needed.
func New(root string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("scratch: root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scratch: resolve %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("scratch: create %q: %w", abs, err)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute root directory.
func (d *Dir) Root() string { return d.root }

// CheckWritable creates and removes a probe file in the root. It is used as
// a readiness check.
func (d *Dir) CheckWritable() error {
	f, err := os.CreateTemp(d.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("scratch: %q not writable: %w", d.root, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// NewSession opens a new, uniquely named session.
func (d *Dir) NewSession() *Session {
	return &Session{root: d.root, id: uuid.NewString()}
}

// Session groups the scratch files of one request.
type Session struct {
	root string
	id   string
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Path returns the path of the session's primary file with the given
// extension. Derived files should be named relative to it.
func (s *Session) Path(ext string) string {
	return filepath.Join(s.root, s.id+ext)
}

// Save copies r into the session's primary file with extension ext and
// returns the resulting asset.
func (s *Session) Save(r io.Reader, ext string) (audio.Asset, error) {
	path := s.Path(ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return audio.Asset{}, fmt.Errorf("scratch: create %q: %w", path, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return audio.Asset{}, fmt.Errorf("scratch: write %q: %w", path, err)
	}
	return audio.Asset{Path: path, Ext: ext, Size: n}, nil
}

// Files lists the files currently belonging to the session.
func (s *Session) Files() ([]string, error) {
	return filepath.Glob(filepath.Join(s.root, s.id+"*"))
}

// Cleanup removes every file belonging to the session. It attempts all
// removals and returns the joined failures.
func (s *Session) Cleanup() error {
	files, err := s.Files()
	if err != nil {
		return fmt.Errorf("scratch: list session %s: %w", s.id, err)
	}
	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
