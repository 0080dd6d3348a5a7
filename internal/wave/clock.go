package wave

import (
	"math"
	"time"
)

// DefaultLoopDuration is the loop length used when none is configured.
const DefaultLoopDuration = 10 * time.Second

// Clock maps wall-clock time onto the normalized loop phase.
type Clock struct {
	LoopDuration time.Duration
	Speed        float64
}

// Phase returns the loop phase in [0,1) after elapsed wall-clock time.
// A non-positive loop duration falls back to DefaultLoopDuration.
func (c Clock) Phase(elapsed time.Duration) float64 {
	loop := c.LoopDuration
	if loop <= 0 {
		loop = DefaultLoopDuration
	}
	scaled := elapsed.Seconds() * c.Speed
	p := math.Mod(scaled, loop.Seconds()) / loop.Seconds()
	if p < 0 {
		p++
	}
	if p >= 1 || math.IsNaN(p) {
		p = 0
	}
	return p
}

// FramePhase returns the loop phase of frame out of frameCount evenly spaced
// frames. Frame frameCount would coincide with frame 0.
func FramePhase(frame, frameCount int) float64 {
	if frameCount <= 0 {
		return 0
	}
	return float64(frame) / float64(frameCount)
}
