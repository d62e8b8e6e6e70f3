package cover

import "testing"

func TestExtByMimeKnownTypes(t *testing.T) {
	cases := map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/webp": "webp",
		"image/bmp":  "bmp",
	}
	for mime, want := range cases {
		if got := extByMime[mime]; got != want {
			t.Errorf("extByMime[%s] = %q, want %q", mime, got, want)
		}
	}
}

func TestHashPathIsStable(t *testing.T) {
	a := hashPath("/music/track.mp3")
	b := hashPath("/music/track.mp3")
	if a != b {
		t.Errorf("hashPath not stable: %s != %s", a, b)
	}
	if hashPath("/music/other.mp3") == a {
		t.Error("expected different paths to hash differently")
	}
}

func TestReadEmbeddedPictureRejectsNonMP3(t *testing.T) {
	if _, _, err := readEmbeddedPicture("track.flac"); err != ErrNoCoverArt {
		t.Errorf("got %v, want ErrNoCoverArt", err)
	}
}
