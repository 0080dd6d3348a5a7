package wave

import (
	"math"
	"math/rand"
)

// Randomizer draws plausible layer parameters. It is not safe for
// concurrent use.
type Randomizer struct {
	rng *rand.Rand
}

// NewRandomizer returns a Randomizer with a deterministic seed.
func NewRandomizer(seed int64) *Randomizer {
	return &Randomizer{rng: rand.New(rand.NewSource(seed))}
}

// Layer returns a fresh, fully unlocked random layer.
func (r *Randomizer) Layer() Layer {
	return Layer{
		Amplitude:    r.rng.Float64()*0.8 + 0.1,
		SpatialFreq:  r.rng.Float64()*3 + 0.2,
		TemporalFreq: r.rng.Intn(8) + 1,
		Direction: Vec2{
			X: (r.rng.Float64() - 0.5) * 2,
			Y: (r.rng.Float64() - 0.5) * 2,
		},
		Phase:       r.rng.Float64() * 2 * math.Pi,
		Sharpness:   r.rng.Float64() * 0.5,
		NoiseAmount: r.rng.Float64() * 0.5,
		NoiseScale:  r.rng.Intn(8) + 1,
		NoiseSeed:   r.rng.Float64() * 100,
	}
}

// Apply returns l with every unlocked field replaced by a random value.
// Locked fields and the lock flags themselves are kept as they are.
func (r *Randomizer) Apply(l Layer) Layer {
	n := r.Layer()
	lock := l.Locked

	if !lock.Amplitude {
		l.Amplitude = n.Amplitude
	}
	if !lock.SpatialFreq {
		l.SpatialFreq = n.SpatialFreq
	}
	if !lock.TemporalFreq {
		l.TemporalFreq = n.TemporalFreq
	}
	if !lock.Direction {
		l.Direction = n.Direction
	}
	if !lock.Phase {
		l.Phase = n.Phase
	}
	if !lock.Sharpness {
		l.Sharpness = n.Sharpness
	}
	if !lock.NoiseAmount {
		l.NoiseAmount = n.NoiseAmount
	}
	if !lock.NoiseScale {
		l.NoiseScale = n.NoiseScale
	}
	if !lock.NoiseSeed {
		l.NoiseSeed = n.NoiseSeed
	}
	return l
}

// ApplyStack randomizes every active layer of s and returns the result.
// Inactive layers are left untouched.
func (r *Randomizer) ApplyStack(s Stack) Stack {
	for i := 0; i < s.ActiveCount(); i++ {
		s.Layers[i] = r.Apply(s.Layers[i])
	}
	return s
}
