package wave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStack_CountClamped(t *testing.T) {
	s := NewStack(nil, 0)
	assert.Equal(t, 1, s.Count)

	s.SetCount(12)
	assert.Equal(t, MaxLayers, s.Count)

	s.Count = -5
	assert.Equal(t, 1, s.ActiveCount())
}

func TestStack_PadsWithDefaults(t *testing.T) {
	s := NewStack([]Layer{{Amplitude: 0.9}}, 3)
	assert.Equal(t, 0.9, s.Layers[0].Amplitude)
	assert.Equal(t, DefaultLayer(), s.Layers[1])
	assert.Equal(t, DefaultLayer(), s.Layers[MaxLayers-1])
}

func TestStack_ActiveIsCopy(t *testing.T) {
	s := DefaultStack()
	active := s.Active()
	assert.Len(t, active, 4)

	active[0].Amplitude = 42
	assert.NotEqual(t, 42.0, s.Layers[0].Amplitude)
}

func TestStack_KeepsInactiveLayers(t *testing.T) {
	s := DefaultStack()
	s.SetCount(1)
	s.SetCount(4)
	assert.Equal(t, DefaultLayers()[3], s.Layers[3])
}

func TestClock_Phase(t *testing.T) {
	tests := []struct {
		name    string
		clock   Clock
		elapsed time.Duration
		want    float64
	}{
		{name: "start", clock: Clock{LoopDuration: 10 * time.Second, Speed: 1}, elapsed: 0, want: 0},
		{name: "quarter", clock: Clock{LoopDuration: 10 * time.Second, Speed: 1}, elapsed: 2500 * time.Millisecond, want: 0.25},
		{name: "wraps", clock: Clock{LoopDuration: 10 * time.Second, Speed: 1}, elapsed: 13 * time.Second, want: 0.3},
		{name: "speed", clock: Clock{LoopDuration: 4 * time.Second, Speed: 2}, elapsed: 3 * time.Second, want: 0.5},
		{name: "reverse", clock: Clock{LoopDuration: 4 * time.Second, Speed: -1}, elapsed: time.Second, want: 0.75},
		{name: "default loop", clock: Clock{Speed: 1}, elapsed: 5 * time.Second, want: 0.5},
		{name: "paused", clock: Clock{LoopDuration: 4 * time.Second}, elapsed: 3 * time.Second, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.clock.Phase(tt.elapsed)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 1.0)
		})
	}
}

func TestFramePhase(t *testing.T) {
	assert.Equal(t, 0.0, FramePhase(0, 30))
	assert.Equal(t, 0.5, FramePhase(15, 30))
	assert.Equal(t, 0.0, FramePhase(3, 0))
}
