package audio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsSupported(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"a.mp3", "b.WAV", "c.m4a", "d.aac", "e.ogg", "f.Flac", "g.mp4"} {
		if !IsSupported(NormalizeExt(name)) {
			t.Errorf("IsSupported(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"a.txt", "b.webm", "noext", "c.mp3.exe"} {
		if IsSupported(NormalizeExt(name)) {
			t.Errorf("IsSupported(%q) = true, want false", name)
		}
	}
}

func TestStat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Recording.WAV")
	if err := os.WriteFile(path, make([]byte, 1234), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if a.Size != 1234 {
		t.Errorf("Size = %d, want 1234", a.Size)
	}
	if a.Ext != ".wav" {
		t.Errorf("Ext = %q, want .wav", a.Ext)
	}
	if a.Base() != "Recording" {
		t.Errorf("Base() = %q, want Recording", a.Base())
	}

	if _, err := Stat(dir); err == nil {
		t.Error("expected error for a directory")
	}
	if _, err := Stat(filepath.Join(dir, "missing.mp3")); err == nil {
		t.Error("expected error for a missing file")
	}
}
