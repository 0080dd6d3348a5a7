// Package noise provides periodic gradient noise for phase distortion.
package noise

import "math"

// Amplitude scales the raw gradient noise so it fills roughly [-1,1].
const Amplitude = 1.5

// Tileable returns 2D gradient noise at (u, v) that repeats exactly every
// whole unit along both axes. period is the number of lattice cells per
// unit; it is clamped to at least 1. seed offsets the corner hash so
// different layers decorrelate.
func Tileable(u, v float64, period int, seed float64) float64 {
	if period < 1 {
		period = 1
	}
	n := float64(period)

	px := u * n
	py := v * n
	ix := math.Floor(px)
	iy := math.Floor(py)
	fx := px - ix
	fy := py - iy

	// Corner lattice coordinates wrap modulo the period; this is what makes
	// the lattice close on itself at the tile edge.
	x0 := wrap(ix, n)
	y0 := wrap(iy, n)
	x1 := wrap(ix+1, n)
	y1 := wrap(iy+1, n)

	d00 := gradDot(x0, y0, seed, fx, fy)
	d10 := gradDot(x1, y0, seed, fx-1, fy)
	d01 := gradDot(x0, y1, seed, fx, fy-1)
	d11 := gradDot(x1, y1, seed, fx-1, fy-1)

	wx := fade(fx)
	wy := fade(fy)

	bottom := lerp(d00, d10, wx)
	top := lerp(d01, d11, wx)
	return lerp(bottom, top, wy) * Amplitude
}

// Gradient returns the pseudo-random lattice gradient for a wrapped corner.
// Both components lie in [-1,1).
func Gradient(cx, cy, seed float64) (gx, gy float64) {
	hx := cx + seed
	hy := cy + seed
	gx = fract(math.Sin(hx*127.1+hy*311.7)*43758.5453)*2 - 1
	gy = fract(math.Sin(hx*269.5+hy*183.3)*43758.5453)*2 - 1
	return gx, gy
}

func gradDot(cx, cy, seed, dx, dy float64) float64 {
	gx, gy := Gradient(cx, cy, seed)
	return gx*dx + gy*dy
}

func fade(t float64) float64 { return t * t * (3 - 2*t) }

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func fract(x float64) float64 { return x - math.Floor(x) }

func wrap(x, n float64) float64 {
	x = math.Mod(x, n)
	if x < 0 {
		x += n
	}
	return x
}
