package wave

import (
	"fmt"
	"math"
	"strings"
)

// NormalConvention selects the sign of the encoded normal's vertical
// tangent axis.
type NormalConvention int

const (
	// ConventionOpenGL is the standard (Y+) convention.
	ConventionOpenGL NormalConvention = iota
	// ConventionDirectX flips the vertical tangent axis (Y-).
	ConventionDirectX
)

func (c NormalConvention) String() string {
	switch c {
	case ConventionDirectX:
		return "directx"
	default:
		return "opengl"
	}
}

// ParseNormalConvention parses "opengl" or "directx" (case-insensitive).
func ParseNormalConvention(s string) (NormalConvention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "opengl", "standard", "":
		return ConventionOpenGL, nil
	case "directx", "flipped-y":
		return ConventionDirectX, nil
	default:
		return ConventionOpenGL, fmt.Errorf("unknown normal map convention %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c NormalConvention) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *NormalConvention) UnmarshalText(b []byte) error {
	v, err := ParseNormalConvention(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// OutputMode selects what a frame encodes.
type OutputMode int

const (
	ModeNormal OutputMode = iota
	ModeHeight
)

func (m OutputMode) String() string {
	if m == ModeHeight {
		return "height"
	}
	return "normal"
}

// ParseOutputMode parses "normal" or "height".
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "":
		return ModeNormal, nil
	case "height":
		return ModeHeight, nil
	default:
		return ModeNormal, fmt.Errorf("unknown output mode %q: must be 'normal' or 'height'", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m OutputMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *OutputMode) UnmarshalText(b []byte) error {
	v, err := ParseOutputMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// FieldConfig holds the global modifiers applied on top of the summed layers.
type FieldConfig struct {
	WaveScale        float64
	NormalIntensity  float64
	HeightRange      float64
	NormalizeHeights bool
	Convention       NormalConvention
	// TilingPreview replicates the tile across the sampled area. It is a
	// display aid; periodicity is only guaranteed at a factor of 1.
	TilingPreview int
}

// DefaultFieldConfig returns the default global modifiers.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		WaveScale:       0.2,
		NormalIntensity: 0.6,
		HeightRange:     1.0,
		Convention:      ConventionOpenGL,
		TilingPreview:   1,
	}
}

// ForExport returns a copy of c with tiling preview disabled.
func (c FieldConfig) ForExport() FieldConfig {
	c.TilingPreview = 1
	return c
}

// RGB is a color with channels in [0,1].
type RGB struct {
	R, G, B float64
}

// Vector decodes an encoded normal back into [-1,1] components.
func (c RGB) Vector() (x, y, z float64) {
	return 2*c.R - 1, 2*c.G - 1, 2*c.B - 1
}

// Gradient is the summed height and its spatial derivatives over all active
// layers, already multiplied by the global wave scale.
type Gradient struct {
	Height float64
	DhDu   float64
	DhDv   float64
}

// Accumulate sums the first active layers at uv and phase t. active is
// clamped to [1, MaxLayers] and to len(layers).
func Accumulate(layers []Layer, active int, uv Vec2, t float64, waveScale float64) Gradient {
	var g Gradient
	for _, l := range activeLayers(layers, active) {
		s := l.Sample(uv, t)
		g.Height += s.Height
		g.DhDu += s.DhDu
		g.DhDv += s.DhDv
	}
	g.Height *= waveScale
	g.DhDu *= waveScale
	g.DhDv *= waveScale
	return g
}

// EvaluateNormal returns the encoded tangent-space normal at uv and loop
// phase t. uv and t are expected in [0,1).
func EvaluateNormal(layers []Layer, active int, uv Vec2, t float64, cfg FieldConfig) RGB {
	uv = previewUV(uv, cfg.TilingPreview)
	g := Accumulate(layers, active, uv, t, cfg.WaveScale)

	nx := -g.DhDu * cfg.NormalIntensity
	ny := -g.DhDv * cfg.NormalIntensity
	nz := 1.0
	l := math.Sqrt(nx*nx + ny*ny + nz*nz)
	nx, ny, nz = nx/l, ny/l, nz/l

	if cfg.Convention == ConventionDirectX {
		ny = -ny
	}
	return RGB{R: nx*0.5 + 0.5, G: ny*0.5 + 0.5, B: nz*0.5 + 0.5}
}

// EvaluateHeight returns the displayable height in [0,1] at uv and loop
// phase t. uv and t are expected in [0,1).
func EvaluateHeight(layers []Layer, active int, uv Vec2, t float64, cfg FieldConfig) float64 {
	uv = previewUV(uv, cfg.TilingPreview)
	h := RawHeight(layers, active, uv, t, cfg)
	return clamp01((h*cfg.HeightRange + 1) * 0.5)
}

// RawHeight returns the scaled, optionally renormalized height before it is
// mapped into the displayable range. No tiling preview is applied.
func RawHeight(layers []Layer, active int, uv Vec2, t float64, cfg FieldConfig) float64 {
	var total, bound float64
	for _, l := range activeLayers(layers, active) {
		total += l.Sample(uv, t).Height
		bound += math.Abs(l.Amplitude)
	}
	total *= cfg.WaveScale

	if cfg.NormalizeHeights {
		minH := -bound * cfg.WaveScale
		maxH := bound * cfg.WaveScale
		if math.Abs(maxH-minH) > 0.001 {
			total = 2*(total-minH)/(maxH-minH) - 1
		}
	}
	return total
}

func activeLayers(layers []Layer, active int) []Layer {
	if active < 1 {
		active = 1
	}
	if active > MaxLayers {
		active = MaxLayers
	}
	if active > len(layers) {
		active = len(layers)
	}
	return layers[:active]
}

func previewUV(uv Vec2, factor int) Vec2 {
	if factor < 1 {
		factor = 1
	}
	f := float64(factor)
	return Vec2{X: fract(uv.X * f), Y: fract(uv.Y * f)}
}

func fract(x float64) float64 { return x - math.Floor(x) }
