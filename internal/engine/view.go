package engine

// StateView is the JSON-serializable snapshot broadcast as playback_state
// and returned by GET /state.
type StateView struct {
	Mode      Mode    `json:"mode"`
	IsPlaying bool    `json:"is_playing"`
	IsPaused  bool    `json:"is_paused"`
	Position  float64 `json:"position"`
	Duration  float64 `json:"duration"`

	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`

	Volume           float32            `json:"volume"`
	LimiterEnabled   bool               `json:"limiter_enabled"`
	LimiterThreshold float32            `json:"limiter_threshold"`
	EQEnabled        bool               `json:"eq_enabled"`
	EQBands          map[string]float64 `json:"eq_bands"`
	EQType           string             `json:"eq_type"`

	DitherEnabled bool   `json:"dither_enabled"`
	DitherType    string `json:"dither_type"`
	DitherBits    int    `json:"dither_bits"`

	ResamplerMode    string `json:"resampler_mode"`
	ResamplerQuality string `json:"resampler_quality"`
	HQLibAvailable   bool   `json:"hq_lib_available"`

	DeviceID      *int `json:"device_id,omitempty"`
	ExclusiveMode bool `json:"exclusive_mode"`

	StreamURL    string `json:"stream_url,omitempty"`
	StreamStatus string `json:"stream_status"`
	StreamError  string `json:"stream_error,omitempty"`

	QueueIndex *int `json:"queue_index,omitempty"`
	QueueLen   int  `json:"queue_len"`

	ReplayGainEnabled bool `json:"replaygain_enabled"`
	SpectrumWSEnabled bool `json:"spectrum_ws_enabled"`
}

// BufferView is the JSON payload for GET /buffer/state and the buffer_state
// broadcast.
type BufferView struct {
	BufferedFrames      uint64 `json:"buffered_frames"`
	BufferMaxMs         int    `json:"buffer_max_ms"`
	Underruns           uint64 `json:"underruns"`
	CallbackInvocations uint64 `json:"callback_invocations"`
}

// StateView snapshots the current engine state. Callers must not hold Mu.
func (d *Dispatcher) StateView() StateView {
	s := d.State
	s.Mu.Lock()
	defer s.Mu.Unlock()

	position := 0.0
	if s.Working.SampleRate > 0 {
		position = float64(s.Position) / float64(s.Working.SampleRate)
	}

	return StateView{
		Mode:              s.Mode,
		IsPlaying:         s.IsPlaying,
		IsPaused:          s.IsPaused,
		Position:          position,
		Duration:          s.DurationSeconds,
		SampleRate:        s.Working.SampleRate,
		Channels:          s.Working.Channels,
		Volume:            s.Volume,
		LimiterEnabled:    s.LimiterEnabled,
		LimiterThreshold:  s.LimiterThreshold,
		EQEnabled:         s.EQEnabled,
		EQBands:           s.EQBands,
		EQType:            s.EQType,
		DitherEnabled:     s.DitherEnabled,
		DitherType:        string(s.DitherType),
		DitherBits:        s.DitherBits,
		ResamplerMode:     string(s.ResamplerMode),
		ResamplerQuality:  string(s.ResamplerQuality),
		HQLibAvailable:    s.HQLibAvailable,
		DeviceID:          s.DeviceID,
		ExclusiveMode:     s.ExclusiveMode,
		StreamURL:         s.StreamURL,
		StreamStatus:      string(s.StreamStatus),
		StreamError:       s.StreamError,
		QueueIndex:        s.QueueIndex,
		QueueLen:          len(s.Queue),
		ReplayGainEnabled: s.ReplayGainEnabled,
		SpectrumWSEnabled: s.SpectrumWSEnabled,
	}
}

// BufferView snapshots buffer statistics.
func (d *Dispatcher) BufferView() BufferView {
	s := d.State
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return BufferView{
		BufferedFrames:      s.BufferedFrames,
		BufferMaxMs:         s.BufferMaxMs,
		Underruns:           s.Underruns,
		CallbackInvocations: s.CallbackInvocations.Load(),
	}
}
