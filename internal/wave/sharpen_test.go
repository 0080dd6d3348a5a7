package wave

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharpen_IdentityAtZero(t *testing.T) {
	for i := -100; i <= 100; i++ {
		w := float64(i) / 100
		assert.Equal(t, w, Sharpen(w, 0))
	}
}

func TestSharpen_Bounded(t *testing.T) {
	for si := 0; si <= 20; si++ {
		s := float64(si) / 20
		for wi := -50; wi <= 50; wi++ {
			w := float64(wi) / 50
			got := Sharpen(w, s)
			assert.GreaterOrEqual(t, got, -1-1e-12, "w=%f s=%f", w, s)
			assert.LessOrEqual(t, got, 1+1e-12, "w=%f s=%f", w, s)
		}
	}
}

func TestSharpen_PreservesExtremes(t *testing.T) {
	for _, s := range []float64{0.1, 0.5, 1} {
		assert.InDelta(t, 1.0, Sharpen(1, s), 1e-12)
		assert.InDelta(t, -1.0, Sharpen(-1, s), 1e-12)
	}
}

func TestSharpen_FullSharpnessShape(t *testing.T) {
	// At s=1, p=0.2: y1=-1 for w=0, y2=-1, y3=0, minY3=1-32=-31,
	// y4 = 2*31/32-1 = 0.9375, result = -0.9375.
	assert.InDelta(t, -0.9375, Sharpen(0, 1), 1e-12)
}

func TestSharpen_ContinuousInSharpness(t *testing.T) {
	w := 0.37
	assert.InDelta(t, w, Sharpen(w, 0.0011), 0.01)
	assert.InDelta(t, Sharpen(w, 1), Sharpen(w, 0.9999), 1e-3)
}

func TestSharpenSlope(t *testing.T) {
	tests := []struct {
		name      string
		wave      float64
		slope     float64
		sharpness float64
		want      float64
	}{
		{name: "no sharpening", wave: 0.2, slope: 0.8, sharpness: 0, want: 0.8},
		{name: "below threshold", wave: 0.2, slope: 0.8, sharpness: 0.0005, want: 0.8},
		// |y1| = |-1-1| = 2 is fine; at wave=-1, y1=0 falls back.
		{name: "degenerate y1", wave: -1, slope: 0.3, sharpness: 0.5, want: 0.3},
		// s=1: p=0.2, y1=-1, scale=5*1^4=5, mix(0.5, -2.5, 1) = -2.5
		{name: "full sharpness at zero crossing", wave: 0, slope: 0.5, sharpness: 1, want: -2.5},
		// s=0.25: p=0.5, y1=-1.5, scale=2*1.5=3, mix(1,-3,0.25)=0.75-0.75=0
		{name: "quarter sharpness", wave: 0.5, slope: 1, sharpness: 0.25, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SharpenSlope(tt.wave, tt.slope, tt.sharpness), 1e-12)
		})
	}
}

func TestSharpenSlope_IsApproximation(t *testing.T) {
	// The slope ignores renormalization, so it differs from the numerical
	// derivative of Sharpen under strong sharpening.
	phase := 0.4
	s := 0.8
	const h = 1e-6
	numeric := (Sharpen(math.Sin(phase+h), s) - Sharpen(math.Sin(phase-h), s)) / (2 * h)
	approx := SharpenSlope(math.Sin(phase), math.Cos(phase), s)
	assert.Greater(t, math.Abs(numeric-approx), 1e-3)
}
