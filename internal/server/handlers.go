package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/MeKo-Tech/fourierwaves/internal/preset"
	"github.com/MeKo-Tech/fourierwaves/internal/wave"
)

// maxSessionBody bounds PUT /api/session bodies.
const maxSessionBody = 1 << 20

// Status reports the render and stream activity of the server.
type Status struct {
	ActiveRenders int     `json:"active_renders"`
	QueuedRenders int     `json:"queued_renders"`
	TotalRendered int64   `json:"total_rendered"`
	TotalFailed   int64   `json:"total_failed"`
	MaxConcurrent int     `json:"max_concurrent"`
	Streams       int     `json:"streams"`
	Phase         float64 `json:"phase"`
	Speed         float64 `json:"speed"`
	Paused        bool    `json:"paused"`
}

// Status returns the current server status.
func (s *Server) Status() Status {
	s.mu.RLock()
	phase := s.playback.phase(s.now(), s.session.LoopDuration)
	speed := s.playback.speed
	paused := s.playback.paused
	s.mu.RUnlock()

	return Status{
		ActiveRenders: int(s.activeRenders.Load()),
		QueuedRenders: int(s.queuedRenders.Load()),
		TotalRendered: s.totalRendered.Load(),
		TotalFailed:   s.totalFailed.Load(),
		MaxConcurrent: s.cfg.MaxConcurrentRenders,
		Streams:       int(s.streams.Load()),
		Phase:         phase,
		Speed:         speed,
		Paused:        paused,
	}
}

// StatusHandler serves Status as JSON.
func (s *Server) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
			s.log().Error("failed to encode status", "error", err)
		}
	})
}

// serveFrame renders GET /frame.png?t=&size=&mode=. Without t the current
// playhead is used.
func (s *Server) serveFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frame, t := s.snapshot()
	q := r.URL.Query()

	if v := q.Get("t"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			http.Error(w, fmt.Sprintf("invalid t %q", v), http.StatusBadRequest)
			return
		}
		t = f - math.Floor(f)
	}

	size := s.cfg.PreviewSize
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > s.cfg.MaxSize {
			http.Error(w, fmt.Sprintf("invalid size %q: must be 1..%d", v, s.cfg.MaxSize), http.StatusBadRequest)
			return
		}
		size = n
	}

	if v := q.Get("mode"); v != "" {
		mode, err := wave.ParseOutputMode(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		frame.Mode = mode
	}

	data, err := s.renderPNG(r.Context(), frame, size, t)
	if err != nil {
		if r.Context().Err() != nil {
			http.Error(w, "request cancelled", http.StatusRequestTimeout)
			return
		}
		s.log().Error("failed to render frame", "size", size, "t", t, "error", err)
		http.Error(w, "failed to render frame", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		s.log().Debug("failed to write frame", "error", err)
	}
}

// serveSession handles GET and PUT /api/session. Bodies are preset
// documents in JSON.
func (s *Server) serveSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeSession(w, s.Session())
	case http.MethodPut:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxSessionBody))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		session, err := preset.DecodeBytes(body, preset.FormatJSON)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		stored, _ := s.update(func() (preset.Session, error) {
			s.SetSession(session)
			return s.Session(), nil
		})
		s.log().Info("session updated", "name", stored.Name, "layers", stored.Stack.Count)
		s.writeSession(w, stored)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// serveRandomize handles POST /api/randomize[?layer=i]. Locked fields are
// kept; without a layer index every active layer is randomized.
func (s *Server) serveRandomize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	layer := -1
	if v := r.URL.Query().Get("layer"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n >= wave.MaxLayers {
			http.Error(w, fmt.Sprintf("invalid layer %q: must be 0..%d", v, wave.MaxLayers-1), http.StatusBadRequest)
			return
		}
		layer = n
	}

	session, err := s.update(func() (preset.Session, error) {
		return s.randomize(layer)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeSession(w, session)
}

var errInactiveLayer = errors.New("layer is not active")

func (s *Server) randomize(layer int) (preset.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if layer < 0 {
		s.session.Stack = s.rng.ApplyStack(s.session.Stack)
	} else {
		if layer >= s.session.Stack.ActiveCount() {
			return preset.Session{}, fmt.Errorf("%w: %d", errInactiveLayer, layer)
		}
		s.session.Stack.Layers[layer] = s.rng.Apply(s.session.Stack.Layers[layer])
	}
	return s.session, nil
}

// update applies change and saves its result before another change can
// run. Nothing is saved when change fails.
func (s *Server) update(change func() (preset.Session, error)) (preset.Session, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	session, err := change()
	if err != nil {
		return preset.Session{}, err
	}
	s.persist(session)
	return session, nil
}

// persist saves the session to the configured preset path, if any.
func (s *Server) persist(session preset.Session) {
	if s.cfg.PresetPath == "" {
		return
	}
	if err := preset.Save(s.cfg.PresetPath, session); err != nil {
		s.log().Warn("failed to persist session", "path", s.cfg.PresetPath, "error", err)
	}
}

func (s *Server) writeSession(w http.ResponseWriter, session preset.Session) {
	var buf bytes.Buffer
	if err := preset.Encode(&buf, session, preset.FormatJSON); err != nil {
		s.log().Error("failed to encode session", "error", err)
		http.Error(w, "failed to encode session", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
