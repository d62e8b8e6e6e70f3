package engine

import "errors"

// Sentinel errors the dispatcher returns, mapped to HTTP status classes by
// internal/server via errors.Is comparison.
var (
	ErrNotFound        = errors.New("engine: not found")
	ErrDecodeFailure   = errors.New("engine: decode failure")
	ErrResampleFailure = errors.New("engine: resample failure")
	ErrDeviceFailure   = errors.New("engine: device failure")
	ErrTranscoderSpawn = errors.New("engine: transcoder spawn failure")
	ErrTranscoderRead  = errors.New("engine: transcoder read error")
	ErrSeekOutOfRange  = errors.New("engine: seek out of range")
	ErrSeekInWrongMode = errors.New("engine: seek in wrong mode")
	ErrWrongMode       = errors.New("engine: operation invalid in current mode")
	ErrQueueEmpty      = errors.New("engine: queue empty")
	ErrUnknownCommand  = errors.New("engine: unknown command")
)
