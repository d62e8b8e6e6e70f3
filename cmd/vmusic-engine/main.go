// Command vmusic-engine runs the audio playback engine: it decodes,
// resamples, dithers, and renders PCM to the host output device while
// exposing a localhost HTTP/WebSocket control surface.
package main

import "github.com/ntmusic/vmusic-engine/cmd"

func main() {
	cmd.Execute()
}
