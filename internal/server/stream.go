package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/fourierwaves/internal/wave"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // preview is served to any local origin
	},
}

// controlMessage is sent by stream clients. Absent fields are left
// unchanged. Speed and Paused act on the shared playhead; Size and Mode
// only on the sending client.
type controlMessage struct {
	Speed  *float64 `json:"speed,omitempty"`
	Paused *bool    `json:"paused,omitempty"`
	Size   *int     `json:"size,omitempty"`
	Mode   *string  `json:"mode,omitempty"`
}

type streamView struct {
	size int
	mode *wave.OutputMode
}

// serveStream upgrades GET /ws and pushes binary PNG frames at the
// configured rate until the client disconnects. The initial size can be
// passed as ?size=.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	view := streamView{size: s.cfg.PreviewSize}
	if v := r.URL.Query().Get("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= s.cfg.MaxSize {
			view.size = n
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.streams.Add(1)
	s.metrics.streamClients.Inc()
	defer func() {
		s.streams.Add(-1)
		s.metrics.streamClients.Dec()
	}()
	s.log().Info("stream client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	views := make(chan streamView, 1)
	go s.readControl(ctx, cancel, conn, view, views)

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log().Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		case v := <-views:
			view = v
		case <-ticker.C:
			frame, t := s.snapshot()
			if view.mode != nil {
				frame.Mode = *view.mode
			}
			data, err := s.renderPNG(ctx, frame, view.size, t)
			if err != nil {
				if ctx.Err() == nil {
					s.log().Error("failed to render stream frame", "error", err)
				}
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.log().Debug("stream write failed", "error", err)
				return
			}
			s.metrics.framesStreamed.Inc()
		}
	}
}

// readControl applies control messages until the connection fails, then
// cancels the stream.
func (s *Server) readControl(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, view streamView, views chan streamView) {
	defer cancel()

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		s.applyControl(msg)

		changed := false
		if msg.Size != nil && *msg.Size > 0 && *msg.Size <= s.cfg.MaxSize {
			view.size = *msg.Size
			changed = true
		}
		if msg.Mode != nil {
			if mode, err := wave.ParseOutputMode(*msg.Mode); err == nil {
				view.mode = &mode
				changed = true
			}
		}
		if !changed {
			continue
		}
		// Replace any view the stream has not picked up yet.
		select {
		case <-views:
		default:
		}
		select {
		case views <- view:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) applyControl(msg controlMessage) {
	if msg.Speed == nil && msg.Paused == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if msg.Speed != nil {
		s.playback.setSpeed(now, *msg.Speed)
		s.session.Speed = *msg.Speed
	}
	if msg.Paused != nil {
		s.playback.setPaused(now, *msg.Paused)
	}
}
