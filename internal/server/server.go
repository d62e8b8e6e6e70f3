// Package server exposes the localhost HTTP/WebSocket control surface,
// dispatching each request onto internal/engine's Dispatcher and
// broadcasting state changes to subscribed WebSocket clients. The
// broadcast hub (Client{conn, send chan}, non-blocking fan out, writePump
// goroutine) follows the standard gorilla/websocket hub pattern.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ntmusic/vmusic-engine/internal/cover"
	"github.com/ntmusic/vmusic-engine/internal/engine"
	"github.com/ntmusic/vmusic-engine/internal/library"
	"github.com/ntmusic/vmusic-engine/internal/output"
)

// Client is one subscribed WebSocket connection.
type Client struct {
	conn *websocket.Conn
	send chan any
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// Server wires http.Handler routes onto a Dispatcher and fans broadcasts
// out to WebSocket subscribers. It implements engine.Broadcaster.
type Server struct {
	Dispatcher *engine.Dispatcher
	Log        *slog.Logger

	upgrader websocket.Upgrader

	mu              sync.RWMutex
	clients         map[*Client]bool
	spectrumEnabled bool
}

// New builds a server bound to dispatcher. Call Handler to obtain the
// http.Handler to serve.
func New(d *engine.Dispatcher, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		Dispatcher: d,
		Log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 65536,
		},
		clients:         make(map[*Client]bool),
		spectrumEnabled: true,
	}
}

// Broadcast fans event out to every connected WebSocket client as
// {"type": event, "state": <payload fields>}, or {"type": event, "data":
// payload} when payload does not encode as a JSON object. spectrum_data is
// suppressed when the
// host has disabled it via POST /spectrum/ws.
func (s *Server) Broadcast(event string, payload any) {
	if event == "spectrum_data" {
		s.mu.RLock()
		enabled := s.spectrumEnabled
		s.mu.RUnlock()
		if !enabled {
			return
		}
	}

	msg := map[string]any{"type": event}
	if b, err := json.Marshal(payload); err == nil {
		var fields map[string]any
		if json.Unmarshal(b, &fields) == nil {
			msg["state"] = fields
		} else {
			msg["data"] = payload
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default: // slow client; drop rather than block the broadcaster
		}
	}
}

// Handler builds the engine's full HTTP/WebSocket route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /devices", s.handleDevices)
	mux.HandleFunc("POST /load", s.handleLoad)
	mux.HandleFunc("POST /play", s.handlePlay)
	mux.HandleFunc("POST /pause", s.handlePause)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("POST /seek", s.handleSeek)
	mux.HandleFunc("POST /volume", s.handleVolume)
	mux.HandleFunc("POST /configure_output", s.handleConfigureOutput)
	mux.HandleFunc("POST /configure_upsampling", s.handleConfigureUpsampling)
	mux.HandleFunc("POST /set_eq", s.handleSetEQ)
	mux.HandleFunc("POST /set_eq_type", s.handleSetEQType)
	mux.HandleFunc("POST /configure_optimizations", s.handleConfigureOptimizations)
	mux.HandleFunc("POST /load_stream", s.handleLoadStream)
	mux.HandleFunc("POST /capture/start", s.handleCaptureStart)
	mux.HandleFunc("POST /capture/stop", s.handleCaptureStop)
	mux.HandleFunc("GET /capture/devices", s.handleCaptureDevices)
	mux.HandleFunc("GET /buffer/state", s.handleBufferState)
	mux.HandleFunc("POST /library/scan", s.handleLibraryScan)
	mux.HandleFunc("POST /queue/add", s.handleQueueAdd)
	mux.HandleFunc("POST /queue/next", s.handleQueueNext)
	mux.HandleFunc("POST /command", s.handleCommand)
	mux.HandleFunc("POST /cover", s.handleCover)
	mux.HandleFunc("POST /spectrum/ws", s.handleSpectrumWS)
	mux.HandleFunc("GET /ws", s.handleWS)

	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &Client{conn: conn, send: make(chan any, 64)}
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	go c.writePump()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		close(c.send)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func ok(w http.ResponseWriter, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["status"] = "success"
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fields)
}

func fail(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": "error", "message": err.Error()})
}

func statusFor(err error) int {
	for _, sentinel := range []error{
		engine.ErrNotFound, engine.ErrSeekOutOfRange, engine.ErrSeekInWrongMode,
		engine.ErrWrongMode, engine.ErrQueueEmpty, engine.ErrUnknownCommand,
	} {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]any{"state": s.Dispatcher.StateView()})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := output.ListDevices()
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}
	ok(w, map[string]any{"devices": devices})
}

func (s *Server) handleCaptureDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := output.ListCaptureDevices()
	if err != nil {
		fail(w, http.StatusInternalServerError, err)
		return
	}
	ok(w, map[string]any{"devices": devices})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Dispatcher.Load(body.Path); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, map[string]any{"state": s.Dispatcher.StateView()})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := s.Dispatcher.Play(); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, nil)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.Dispatcher.Pause(); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, nil)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.Dispatcher.Stop(); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, nil)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Position float64 `json:"position"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Dispatcher.Seek(body.Position); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, nil)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Volume float32 `json:"volume"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Dispatcher.SetVolume(body.Volume); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, nil)
}

func (s *Server) handleConfigureOutput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceID  *int  `json:"device_id"`
		Exclusive *bool `json:"exclusive"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Dispatcher.ConfigureOutput(body.DeviceID, body.Exclusive); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, map[string]any{"state": s.Dispatcher.StateView()})
}

func (s *Server) handleConfigureUpsampling(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TargetSampleRate *int `json:"target_samplerate"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Dispatcher.ConfigureUpsampling(body.TargetSampleRate); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, nil)
}

func (s *Server) handleSetEQ(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Bands   map[string]float64 `json:"bands"`
		Enabled *bool              `json:"enabled"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Dispatcher.SetEQ(body.Bands, body.Enabled); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, nil)
}

func (s *Server) handleSetEQType(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type string `json:"type"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Dispatcher.SetEQType(body.Type); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, nil)
}

func (s *Server) handleConfigureOptimizations(w http.ResponseWriter, r *http.Request) {
	var body engine.OptimizationsConfig
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Dispatcher.ConfigureOptimizations(body); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, map[string]any{"state": s.Dispatcher.StateView()})
}

func (s *Server) handleLoadStream(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Dispatcher.LoadStream(body.URL); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, map[string]any{"state": s.Dispatcher.StateView()})
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceID   *int `json:"device_id"`
		SampleRate *int `json:"samplerate"`
		Channels   *int `json:"channels"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	sampleRate, channels := 48000, 2
	if body.SampleRate != nil {
		sampleRate = *body.SampleRate
	}
	if body.Channels != nil {
		channels = *body.Channels
	}
	if err := s.Dispatcher.CaptureStart(body.DeviceID, sampleRate, channels); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, map[string]any{"state": s.Dispatcher.StateView()})
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	if err := s.Dispatcher.CaptureStop(); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, nil)
}

func (s *Server) handleBufferState(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]any{"buffer": s.Dispatcher.BufferView()})
}

func (s *Server) handleLibraryScan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	tracks, err := library.Scan(body.Path)
	if err != nil {
		fail(w, statusFor(engine.ErrNotFound), err)
		return
	}
	s.Dispatcher.State.Mu.Lock()
	s.Dispatcher.State.Library = tracks
	s.Dispatcher.State.Mu.Unlock()
	ok(w, map[string]any{"tracks": tracks})
}

func (s *Server) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tracks  []engine.LibraryTrack `json:"tracks"`
		Replace bool                  `json:"replace"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Dispatcher.QueueAdd(body.Tracks, body.Replace); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, map[string]any{"state": s.Dispatcher.StateView()})
}

func (s *Server) handleQueueNext(w http.ResponseWriter, r *http.Request) {
	if err := s.Dispatcher.QueueNext(); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, map[string]any{"state": s.Dispatcher.StateView()})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text   string `json:"text"`
		Action string `json:"action"`
		Query  string `json:"query"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	text := body.Text
	if text == "" {
		text = body.Action
	}
	if err := s.Dispatcher.Command(text, body.Query); err != nil {
		fail(w, statusFor(err), err)
		return
	}
	ok(w, map[string]any{"state": s.Dispatcher.StateView()})
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	path, err := cover.Extract(body.Path)
	if err != nil {
		fail(w, statusFor(engine.ErrNotFound), err)
		return
	}
	ok(w, map[string]any{"cover_path": path})
}

func (s *Server) handleSpectrumWS(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &body); err != nil {
		fail(w, http.StatusBadRequest, err)
		return
	}
	s.mu.Lock()
	s.spectrumEnabled = body.Enabled
	s.mu.Unlock()
	s.Dispatcher.State.Mu.Lock()
	s.Dispatcher.State.SpectrumWSEnabled = body.Enabled
	s.Dispatcher.State.Mu.Unlock()
	ok(w, nil)
}
