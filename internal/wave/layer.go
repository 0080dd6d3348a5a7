// Package wave evaluates the tileable, looping Fourier wave field: per-layer
// sine components, their sharpening, noise distortion and analytic
// derivatives, summed into heights or tangent-space normals.
package wave

import (
	"math"

	"github.com/MeKo-Tech/fourierwaves/internal/noise"
)

// MaxLayers is the fixed capacity of a layer stack.
const MaxLayers = 8

const twoPi = 2 * math.Pi

// noiseEpsilon is the noise amount below which the noise term is skipped.
const noiseEpsilon = 0.001

// Vec2 is a 2D vector or texture coordinate.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Dot returns the dot product of a and b.
func (a Vec2) Dot(b Vec2) float64 { return a.X*b.X + a.Y*b.Y }

// Len returns the Euclidean length of a.
func (a Vec2) Len() float64 { return math.Hypot(a.X, a.Y) }

// Normalize returns a unit vector in the direction of a. A zero vector
// normalizes to (1,0).
func (a Vec2) Normalize() Vec2 {
	l := a.Len()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Vec2{X: 1}
	}
	return Vec2{X: a.X / l, Y: a.Y / l}
}

// LockFlags marks layer fields that the randomizer must leave untouched.
type LockFlags struct {
	Amplitude    bool `json:"amplitude" yaml:"amplitude"`
	SpatialFreq  bool `json:"spatialFreq" yaml:"spatialFreq"`
	TemporalFreq bool `json:"temporalFreq" yaml:"temporalFreq"`
	Direction    bool `json:"direction" yaml:"direction"`
	Phase        bool `json:"phase" yaml:"phase"`
	Sharpness    bool `json:"sharpness" yaml:"sharpness"`
	NoiseAmount  bool `json:"noiseAmount" yaml:"noiseAmount"`
	NoiseScale   bool `json:"noiseScale" yaml:"noiseScale"`
	NoiseSeed    bool `json:"noiseSeed" yaml:"noiseSeed"`
}

// AllLocked returns a LockFlags value with every field locked.
func AllLocked() LockFlags {
	return LockFlags{
		Amplitude: true, SpatialFreq: true, TemporalFreq: true,
		Direction: true, Phase: true, Sharpness: true,
		NoiseAmount: true, NoiseScale: true, NoiseSeed: true,
	}
}

// Layer is one additive Fourier component of the height field.
type Layer struct {
	Amplitude    float64   `json:"amplitude" yaml:"amplitude"`
	SpatialFreq  float64   `json:"spatialFreq" yaml:"spatialFreq"`
	TemporalFreq int       `json:"temporalFreq" yaml:"temporalFreq"`
	Direction    Vec2      `json:"direction" yaml:"direction"`
	Phase        float64   `json:"phase" yaml:"phase"`
	Sharpness    float64   `json:"sharpness" yaml:"sharpness"`
	NoiseAmount  float64   `json:"noiseAmount" yaml:"noiseAmount"`
	NoiseScale   int       `json:"noiseScale" yaml:"noiseScale"`
	NoiseSeed    float64   `json:"noiseSeed" yaml:"noiseSeed"`
	Locked       LockFlags `json:"locked" yaml:"locked"`
}

// Clamped returns a copy of l with out-of-domain parameters moved to the
// nearest valid value: TemporalFreq and NoiseScale to at least 1, Sharpness
// into [0,1] and NoiseAmount to at least 0. Amplitude and Phase are taken
// as given.
func (l Layer) Clamped() Layer {
	if l.TemporalFreq < 1 {
		l.TemporalFreq = 1
	}
	if l.NoiseScale < 1 {
		l.NoiseScale = 1
	}
	l.Sharpness = clamp01(l.Sharpness)
	if l.NoiseAmount < 0 || math.IsNaN(l.NoiseAmount) {
		l.NoiseAmount = 0
	}
	return l
}

// Wavevector returns the layer's spatial wavevector snapped to whole cycles
// per tile along each axis. The snapping is what makes every layer tile
// seamlessly; small spatial frequencies may therefore round to zero.
func (l Layer) Wavevector() Vec2 {
	dir := l.Direction.Normalize()
	return Vec2{
		X: roundHalfUp(l.SpatialFreq*dir.X) * twoPi,
		Y: roundHalfUp(l.SpatialFreq*dir.Y) * twoPi,
	}
}

// Sample is one layer's contribution at a point: its height and the two
// partial derivatives of that height along u and v.
type Sample struct {
	Height float64
	DhDu   float64
	DhDv   float64
}

// Sample evaluates the layer at texture coordinate uv and loop phase t.
// The returned values do not include the global wave scale.
func (l Layer) Sample(uv Vec2, t float64) Sample {
	l = l.Clamped()
	k := l.Wavevector()

	phase := k.Dot(uv) + float64(l.TemporalFreq)*twoPi*t + l.Phase
	if l.NoiseAmount > noiseEpsilon {
		phase += l.NoiseAmount * noise.Tileable(uv.X, uv.Y, l.NoiseScale, l.NoiseSeed)
	}

	s, c := math.Sincos(phase)
	shaped := Sharpen(s, l.Sharpness)
	slope := SharpenSlope(s, c, l.Sharpness)

	return Sample{
		Height: l.Amplitude * shaped,
		DhDu:   l.Amplitude * slope * k.X,
		DhDv:   l.Amplitude * slope * k.Y,
	}
}

// roundHalfUp rounds to the nearest integer with halves going up, matching
// floor(x+0.5).
func roundHalfUp(x float64) float64 { return math.Floor(x + 0.5) }

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
