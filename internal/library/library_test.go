package library

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanFiltersKnownExtensions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp3", "b.flac", "c.txt", "d.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	tracks, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d: %+v", len(tracks), tracks)
	}
	for _, tr := range tracks {
		if tr.Title == "" {
			t.Errorf("track %s has empty title", tr.Path)
		}
	}
}

func TestScanMissingDirReturnsError(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error scanning missing directory")
	}
}
