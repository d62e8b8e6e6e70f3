// Package cover implements cover-art extraction: hash the source path,
// pull any embedded picture frame, and write it once under
// NTMUSIC_COVER_DIR as cover_<hash>.<ext>. ID3v2
// APIC frames (the common case for the mp3 library this engine already
// decodes) are read with bogem/id3v2, the tag library the rest of the
// pack's Go music players depend on.
package cover

import (
	"errors"
	"fmt"
	"hash/maphash"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
)

// ErrNoCoverArt is returned when the source file carries no embedded
// picture frame this package knows how to read.
var ErrNoCoverArt = errors.New("cover: no embedded artwork found")

var extByMime = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

var pathHashSeed = maphash.MakeSeed()

// Extract reads any embedded cover picture from path and writes it once
// under NTMUSIC_COVER_DIR (defaulting to a temp-dir subfolder), returning
// the written file's path.
func Extract(path string) (string, error) {
	mime, data, err := readEmbeddedPicture(path)
	if err != nil {
		return "", err
	}

	dir := os.Getenv("NTMUSIC_COVER_DIR")
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "vmusic-engine-covers")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cover: create cover dir: %w", err)
	}

	ext, ok := extByMime[mime]
	if !ok {
		ext = "bin"
	}

	name := fmt.Sprintf("cover_%s.%s", hashPath(path), ext)
	outPath := filepath.Join(dir, name)

	if _, err := os.Stat(outPath); err == nil {
		return outPath, nil // already extracted
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", fmt.Errorf("cover: write cover file: %w", err)
	}
	return outPath, nil
}

func hashPath(path string) string {
	var h maphash.Hash
	h.SetSeed(pathHashSeed)
	h.WriteString(path)
	return strconv.FormatUint(h.Sum64(), 16)
}

func readEmbeddedPicture(path string) (mime string, data []byte, err error) {
	if !strings.EqualFold(filepath.Ext(path), ".mp3") {
		return "", nil, ErrNoCoverArt
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return "", nil, fmt.Errorf("cover: open %s: %w", path, err)
	}
	defer tag.Close()

	frames := tag.GetFrames(tag.CommonID("Attached picture"))
	if len(frames) == 0 {
		return "", nil, ErrNoCoverArt
	}

	pic, ok := frames[0].(id3v2.PictureFrame)
	if !ok {
		return "", nil, ErrNoCoverArt
	}
	return pic.MimeType, pic.Picture, nil
}
