package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/fourierwaves/internal/archive"
)

// PackHandler serves frames of an exported frame pack for playback.
type PackHandler struct {
	reader       *archive.PackReader
	logger       *slog.Logger
	cacheControl string
}

// PackConfig configures the pack handler.
type PackConfig struct {
	PackPath     string
	CacheControl string
}

// NewPackHandler opens the pack at cfg.PackPath.
func NewPackHandler(cfg PackConfig, logger *slog.Logger) (*PackHandler, error) {
	reader, err := archive.OpenPack(cfg.PackPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame pack: %w", err)
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "public, max-age=3600"
	}

	return &PackHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cfg.CacheControl,
	}, nil
}

// Handler serves /pack/metadata and /pack/{index}.png.
func (h *PackHandler) Handler() http.Handler {
	return http.HandlerFunc(h.serve)
}

func (h *PackHandler) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/pack/metadata" {
		h.serveMetadata(w)
		return
	}

	index, ok := parseFramePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := h.reader.Frame(index)
	if err != nil {
		h.log().Error("Failed to read frame", "frame", index, "error", err)
		http.Error(w, "Frame not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *PackHandler) serveMetadata(w http.ResponseWriter) {
	meta, err := h.reader.Metadata()
	if err != nil {
		h.log().Error("Failed to read pack metadata", "error", err)
		http.Error(w, "failed to read metadata", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"name":          meta.Name,
		"mode":          meta.Mode,
		"convention":    meta.Convention,
		"size":          meta.Size,
		"frames":        meta.Frames,
		"loop_seconds":  meta.LoopDuration.Seconds(),
		"export_id":     meta.ExportID,
		"preset":        json.RawMessage(nonEmptyJSON(meta.Preset)),
		"frame_pattern": "/pack/{index}.png",
	})
}

// Close closes the pack reader.
func (h *PackHandler) Close() error {
	return h.reader.Close()
}

func (h *PackHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseFramePath parses a frame path like /pack/12.png.
func parseFramePath(requestPath string) (int, bool) {
	if !strings.HasPrefix(requestPath, "/pack/") {
		return 0, false
	}

	base := path.Base(requestPath)
	if !strings.HasSuffix(base, ".png") {
		return 0, false
	}

	index, err := strconv.Atoi(strings.TrimSuffix(base, ".png"))
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

func nonEmptyJSON(s string) string {
	if strings.TrimSpace(s) == "" || !json.Valid([]byte(s)) {
		return "null"
	}
	return s
}
