// Package render rasterizes the wave field into images. It is shared by the
// live preview server and the batch exporter.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/MeKo-Tech/fourierwaves/internal/wave"
)

// Frame is an immutable snapshot of everything needed to render: the layer
// arena, the active count, the global modifiers and the output mode.
// Frames are plain values; copying one copies its layers.
type Frame struct {
	Stack  wave.Stack
	Config wave.FieldConfig
	Mode   wave.OutputMode
}

// Snapshot freezes the given state into a Frame. Later changes to the
// caller's stack do not affect the returned frame.
func Snapshot(stack wave.Stack, cfg wave.FieldConfig, mode wave.OutputMode) Frame {
	stack.SetCount(stack.Count)
	return Frame{Stack: stack, Config: cfg, Mode: mode}
}

// ForExport returns a copy of f with tiling preview disabled.
func (f Frame) ForExport() Frame {
	f.Config = f.Config.ForExport()
	return f
}

// EncodePNG encodes img using one of the compression names default, speed,
// best or none.
func EncodePNG(img image.Image, compression string) ([]byte, error) {
	level, err := parseCompression(compression)
	if err != nil {
		return nil, err
	}
	enc := png.Encoder{CompressionLevel: level}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ErrInvalidCompression is returned for unknown PNG compression names.
var ErrInvalidCompression = errors.New("invalid png compression")

// ValidateCompression checks a compression name without encoding anything.
func ValidateCompression(compression string) error {
	_, err := parseCompression(compression)
	return err
}

func parseCompression(s string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none":
		return png.NoCompression, nil
	default:
		return png.DefaultCompression, fmt.Errorf("%w %q: must be default, speed, best or none", ErrInvalidCompression, s)
	}
}
