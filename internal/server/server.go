// Package server runs the live preview: it renders frames of the current
// session on request, streams them over a websocket and lets clients edit
// and randomize the session.
package server

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/fourierwaves/internal/preset"
	"github.com/MeKo-Tech/fourierwaves/internal/render"
	"github.com/MeKo-Tech/fourierwaves/internal/wave"
)

// maxFPS caps the websocket frame rate.
const maxFPS = 120

// Config configures the preview server.
type Config struct {
	PreviewSize          int
	MaxSize              int
	FPS                  int
	MaxConcurrentRenders int
	RenderTimeout        time.Duration
	PNGCompression       string
	CacheControl         string
	// Seed seeds the randomizer. Zero seeds from the clock.
	Seed int64
	// PresetPath, when set, is where PUT and randomize persist the session.
	PresetPath string
}

// Server holds the shared preview state.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	renderer *render.Renderer
	metrics  *Metrics
	sem      chan struct{}
	now      func() time.Time

	// saveMu orders session changes together with their save so the preset
	// file always holds the latest change.
	saveMu sync.Mutex

	mu       sync.RWMutex
	session  preset.Session
	playback playback
	rng      *wave.Randomizer

	activeRenders atomic.Int32
	totalRendered atomic.Int64
	totalFailed   atomic.Int64
	queuedRenders atomic.Int32
	streams       atomic.Int32
}

// New creates a preview server for session.
func New(session preset.Session, cfg Config, logger *slog.Logger) *Server {
	if cfg.PreviewSize <= 0 {
		cfg.PreviewSize = 256
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 2048
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}
	if cfg.FPS > maxFPS {
		cfg.FPS = maxFPS
	}
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = 1
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	if cfg.PNGCompression == "" {
		cfg.PNGCompression = "speed"
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		renderer: &render.Renderer{},
		metrics:  NewMetrics(),
		sem:      make(chan struct{}, cfg.MaxConcurrentRenders),
		now:      time.Now,
		session:  session.Normalized(),
		rng:      wave.NewRandomizer(seed),
	}
	s.playback = newPlayback(s.now(), session.Speed)
	return s
}

// Handler returns the HTTP routes of the preview server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/frame.png", withCORS(http.HandlerFunc(s.serveFrame)))
	mux.Handle("/api/session", withCORS(http.HandlerFunc(s.serveSession)))
	mux.Handle("/api/randomize", withCORS(http.HandlerFunc(s.serveRandomize)))
	mux.Handle("/api/status", withCORS(s.StatusHandler()))
	mux.HandleFunc("/ws", s.serveStream)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Session returns a copy of the current session.
func (s *Server) Session() preset.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SetSession replaces the session. The playhead keeps running; the new
// speed applies from now on.
func (s *Server) SetSession(session preset.Session) {
	session = session.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.playback.setSpeed(s.now(), session.Speed)
}

// Phase returns the current loop phase of the live preview.
func (s *Server) Phase() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playback.phase(s.now(), s.session.LoopDuration)
}

// snapshot returns a frozen frame of the session together with the current
// loop phase.
func (s *Server) snapshot() (render.Frame, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Frame(), s.playback.phase(s.now(), s.session.LoopDuration)
}

// renderPNG renders one frame under the render semaphore.
func (s *Server) renderPNG(ctx context.Context, frame render.Frame, size int, t float64) ([]byte, error) {
	s.queuedRenders.Add(1)
	select {
	case s.sem <- struct{}{}:
		s.queuedRenders.Add(-1)
		defer func() { <-s.sem }()
	case <-ctx.Done():
		s.queuedRenders.Add(-1)
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout)
	defer cancel()

	s.activeRenders.Add(1)
	defer s.activeRenders.Add(-1)

	start := s.now()
	data, err := s.renderer.RenderPNG(ctx, frame, size, t, s.cfg.PNGCompression)
	if err != nil {
		s.totalFailed.Add(1)
		return nil, err
	}
	s.totalRendered.Add(1)
	s.metrics.observeRender(frame.Mode.String(), s.now().Sub(start))
	return data, nil
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// playback is the live animation clock. Loop time advances at speed while
// not paused; speed changes fold the time played so far into offset so the
// picture does not jump.
type playback struct {
	anchor time.Time
	offset time.Duration
	speed  float64
	paused bool
}

func newPlayback(now time.Time, speed float64) playback {
	return playback{anchor: now, speed: speed}
}

func (p *playback) elapsed(now time.Time) time.Duration {
	if p.paused {
		return p.offset
	}
	return p.offset + time.Duration(float64(now.Sub(p.anchor))*p.speed)
}

func (p *playback) phase(now time.Time, loop time.Duration) float64 {
	return wave.Clock{LoopDuration: loop, Speed: 1}.Phase(p.elapsed(now))
}

func (p *playback) setSpeed(now time.Time, speed float64) {
	p.offset = p.elapsed(now)
	p.anchor = now
	p.speed = speed
}

func (p *playback) setPaused(now time.Time, paused bool) {
	p.offset = p.elapsed(now)
	p.anchor = now
	p.paused = paused
}
