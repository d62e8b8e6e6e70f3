//go:build !windows

package output

import (
	"errors"
	"log/slog"

	"github.com/ntmusic/vmusic-engine/internal/engine"
	"github.com/ntmusic/vmusic-engine/internal/ring"
	"github.com/ntmusic/vmusic-engine/internal/shm"
)

// isWASAPIEligible is always false off Windows: exclusive mode against a
// WASAPI-labeled host API downgrades to shared.
func isWASAPIEligible(hostAPI string) bool {
	return false
}

// newExclusiveRenderer never succeeds off Windows; Renderer.Rebuild falls
// back to the shared PortAudio path whenever this returns an error.
func newExclusiveRenderer(deviceID, channels, rate, bits int, s *engine.EngineState, rb *ring.Buffer, control *shm.ControlRegion, log *slog.Logger) (exclusiveRenderer, error) {
	return nil, errors.New("output: exclusive-mode rendering is only available on windows")
}
