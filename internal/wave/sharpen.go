package wave

import "math"

// sharpnessEpsilon is the threshold below which sharpening is skipped.
const sharpnessEpsilon = 0.001

// sharpenPower maps sharpness in [0,1] to the shaping power p in (0.2, 1].
func sharpenPower(sharpness float64) float64 {
	return 1.0 / (1.0 + 4.0*sharpness)
}

// Sharpen reshapes a unit sine sample into an asymmetric, oscilloscope-like
// waveform with sharp valleys and flattened peaks. The output stays within
// [-1,1] and equals wave when sharpness is zero.
func Sharpen(wave, sharpness float64) float64 {
	if sharpness <= sharpnessEpsilon {
		return wave
	}
	invP := 1.0 / sharpenPower(sharpness)

	// Flip so the power curve acts on the valleys, then move into [-2,0].
	y1 := -wave - 1.0
	y2 := -math.Pow(-y1, invP)
	y3 := y2 + 1.0

	// y3 spans [1-2^(1/p), 1] for wave in [-1,1].
	minY3 := 1.0 - math.Pow(2.0, invP)
	const maxY3 = 1.0
	y4 := 2.0*(y3-minY3)/(maxY3-minY3) - 1.0

	return mix(wave, -y4, sharpness)
}

// SharpenSlope approximates the slope of Sharpen given the raw sine sample
// and its raw slope (the cosine term). It ignores the renormalization step of
// Sharpen, so normals under strong sharpening are only approximately correct.
// Visual tuning depends on this exact approximation.
func SharpenSlope(wave, slope, sharpness float64) float64 {
	if sharpness <= sharpnessEpsilon {
		return slope
	}
	invP := 1.0 / sharpenPower(sharpness)
	y1 := -wave - 1.0
	if math.Abs(y1) <= sharpnessEpsilon {
		return slope
	}
	scale := invP * math.Pow(math.Abs(y1), invP-1.0)
	return mix(slope, -slope*scale, sharpness)
}

func mix(a, b, t float64) float64 { return a*(1-t) + b*t }
