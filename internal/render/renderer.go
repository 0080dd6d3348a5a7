package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"

	"github.com/MeKo-Tech/fourierwaves/internal/wave"
	"golang.org/x/sync/errgroup"
)

// Renderer rasterizes frames. Pixels are independent, so rows are split
// into bands that are evaluated concurrently.
type Renderer struct {
	// Workers bounds the number of concurrently evaluated bands. Zero means
	// one per CPU.
	Workers int
	// Deep selects 16-bit output for height maps.
	Deep bool
}

// Render evaluates frame at loop phase t into a size×size image. Normal
// maps are returned as *image.NRGBA, height maps as *image.Gray or
// *image.Gray16. Row 0 is the top of the image, which corresponds to v≈1.
func (r *Renderer) Render(ctx context.Context, frame Frame, size int, t float64) (image.Image, error) {
	if size <= 0 {
		return nil, fmt.Errorf("size must be positive")
	}

	var (
		img     image.Image
		setRow  func(y int)
		layers  = frame.Stack.Active()
		active  = len(layers)
		cfg     = frame.Config
		invSize = 1.0 / float64(size)
	)

	switch {
	case frame.Mode == wave.ModeNormal:
		dst := image.NewNRGBA(image.Rect(0, 0, size, size))
		setRow = func(y int) {
			v := float64(size-y) - 0.5
			for x := 0; x < size; x++ {
				uv := wave.Vec2{X: (float64(x) + 0.5) * invSize, Y: v * invSize}
				n := wave.EvaluateNormal(layers, active, uv, t, cfg)
				dst.SetNRGBA(x, y, color.NRGBA{R: to8(n.R), G: to8(n.G), B: to8(n.B), A: 255})
			}
		}
		img = dst
	case r.Deep:
		dst := image.NewGray16(image.Rect(0, 0, size, size))
		setRow = func(y int) {
			v := float64(size-y) - 0.5
			for x := 0; x < size; x++ {
				uv := wave.Vec2{X: (float64(x) + 0.5) * invSize, Y: v * invSize}
				h := wave.EvaluateHeight(layers, active, uv, t, cfg)
				dst.SetGray16(x, y, color.Gray16{Y: to16(h)})
			}
		}
		img = dst
	default:
		dst := image.NewGray(image.Rect(0, 0, size, size))
		setRow = func(y int) {
			v := float64(size-y) - 0.5
			for x := 0; x < size; x++ {
				uv := wave.Vec2{X: (float64(x) + 0.5) * invSize, Y: v * invSize}
				h := wave.EvaluateHeight(layers, active, uv, t, cfg)
				dst.SetGray(x, y, color.Gray{Y: to8(h)})
			}
		}
		img = dst
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	bands := bandRanges(size, workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, b := range bands {
		b := b
		g.Go(func() error {
			for y := b[0]; y < b[1]; y++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				setRow(y)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return img, nil
}

// RenderPNG renders and encodes a frame in one step.
func (r *Renderer) RenderPNG(ctx context.Context, frame Frame, size int, t float64, compression string) ([]byte, error) {
	img, err := r.Render(ctx, frame, size, t)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img, compression)
}

// bandRanges splits rows [0,size) into contiguous half-open bands, four per
// worker, so a slow band does not leave the other workers idle.
func bandRanges(size, n int) [][2]int {
	count := n * 4
	if count > size {
		count = size
	}
	if count < 1 {
		count = 1
	}
	out := make([][2]int, 0, count)
	for i := 0; i < count; i++ {
		start := i * size / count
		end := (i + 1) * size / count
		if end > start {
			out = append(out, [2]int{start, end})
		}
	}
	return out
}

func to8(x float64) uint8 {
	return uint8(math.Round(clamp01(x) * 255))
}

func to16(x float64) uint16 {
	return uint16(math.Round(clamp01(x) * 65535))
}

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
