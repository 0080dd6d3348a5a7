package wave

// Stack is a fixed-capacity arena of layers. Only the first Count layers are
// evaluated; the rest keep their values so raising Count brings them back.
// Layers are addressed by index and never reordered.
type Stack struct {
	Layers [MaxLayers]Layer
	Count  int
}

// NewStack returns a stack holding layers (truncated to MaxLayers) with the
// given active count. Unused slots are filled with DefaultLayer.
func NewStack(layers []Layer, count int) Stack {
	var s Stack
	for i := range s.Layers {
		if i < len(layers) {
			s.Layers[i] = layers[i]
		} else {
			s.Layers[i] = DefaultLayer()
		}
	}
	s.SetCount(count)
	return s
}

// SetCount sets the active layer count, clamped to [1, MaxLayers].
func (s *Stack) SetCount(n int) {
	if n < 1 {
		n = 1
	}
	if n > MaxLayers {
		n = MaxLayers
	}
	s.Count = n
}

// ActiveCount returns Count clamped to [1, MaxLayers].
func (s Stack) ActiveCount() int {
	c := s
	c.SetCount(s.Count)
	return c.Count
}

// Active returns a copy of the active layers.
func (s Stack) Active() []Layer {
	out := make([]Layer, s.ActiveCount())
	copy(out, s.Layers[:])
	return out
}

// DefaultLayer is the filler used for slots that were never configured.
func DefaultLayer() Layer {
	return Layer{
		Amplitude:    0.1,
		SpatialFreq:  1.0,
		TemporalFreq: 1,
		Direction:    Vec2{X: 1},
		NoiseScale:   4,
	}
}

// DefaultLayers returns the initial four-component setup followed by filler
// layers up to MaxLayers.
func DefaultLayers() []Layer {
	layers := []Layer{
		{Amplitude: 0.8, SpatialFreq: 0.5, TemporalFreq: 1, Direction: Vec2{X: 1.0, Y: 0.0}, Phase: 0.0, NoiseScale: 4},
		{Amplitude: 0.6, SpatialFreq: 1.0, TemporalFreq: 2, Direction: Vec2{X: 0.7, Y: 0.7}, Phase: 1.57, NoiseScale: 4, NoiseSeed: 17},
		{Amplitude: 0.4, SpatialFreq: 1.5, TemporalFreq: 3, Direction: Vec2{X: -0.5, Y: 0.8}, Phase: 3.14, NoiseScale: 4, NoiseSeed: 34},
		{Amplitude: 0.3, SpatialFreq: 2.0, TemporalFreq: 4, Direction: Vec2{X: -0.8, Y: -0.6}, Phase: 4.71, NoiseScale: 4, NoiseSeed: 51},
	}
	for len(layers) < MaxLayers {
		layers = append(layers, DefaultLayer())
	}
	return layers
}

// DefaultStack returns the default layers with four active.
func DefaultStack() Stack {
	return NewStack(DefaultLayers(), 4)
}
