// Package library implements a minimal library scanner, a source of queue
// entries: walk a directory, keep files whose extension
// the decoder façade recognizes, and report them as unplayed LibraryTrack
// stubs (title seeded from the filename; duration/tags are not probed, to
// keep a scan over a large tree cheap).
package library

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ntmusic/vmusic-engine/internal/engine"
)

var knownExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
}

// Scan walks root and returns one LibraryTrack per recognized audio file,
// sorted by the order filepath.WalkDir visits them (lexical per directory).
func Scan(root string) ([]engine.LibraryTrack, error) {
	var tracks []engine.LibraryTrack

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !knownExtensions[ext] {
			return nil
		}
		tracks = append(tracks, engine.LibraryTrack{
			Path:  path,
			Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tracks, nil
}
