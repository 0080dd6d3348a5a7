// Package preset persists wave sessions. A session is the complete user
// state: the layer arena, the global modifiers, the output mode, the
// animation clock and the export settings.
package preset

import (
	"time"

	"github.com/MeKo-Tech/fourierwaves/internal/render"
	"github.com/MeKo-Tech/fourierwaves/internal/wave"
)

const (
	DefaultName         = "Fourier Wave Preset"
	DefaultExportRes    = 512
	DefaultExportFrames = 30
	DefaultSpeed        = 1.0
)

// Session is the persisted state of one wave setup.
type Session struct {
	Name         string
	Stack        wave.Stack
	Config       wave.FieldConfig
	Mode         wave.OutputMode
	LoopDuration time.Duration
	Speed        float64
	ExportRes    int
	ExportFrames int
}

// Default returns the session a fresh installation starts with.
func Default() Session {
	return Session{
		Name:         DefaultName,
		Stack:        wave.DefaultStack(),
		Config:       wave.DefaultFieldConfig(),
		Mode:         wave.ModeNormal,
		LoopDuration: wave.DefaultLoopDuration,
		Speed:        DefaultSpeed,
		ExportRes:    DefaultExportRes,
		ExportFrames: DefaultExportFrames,
	}
}

// Normalized returns a copy of s with every value moved into its valid
// domain. Layers pass through wave.Layer.Clamped.
func (s Session) Normalized() Session {
	s.Stack.SetCount(s.Stack.Count)
	for i := range s.Stack.Layers {
		s.Stack.Layers[i] = s.Stack.Layers[i].Clamped()
	}
	if s.Config.TilingPreview < 1 {
		s.Config.TilingPreview = 1
	}
	if s.LoopDuration <= 0 {
		s.LoopDuration = wave.DefaultLoopDuration
	}
	if s.ExportRes <= 0 {
		s.ExportRes = DefaultExportRes
	}
	if s.ExportFrames <= 0 {
		s.ExportFrames = DefaultExportFrames
	}
	if s.Name == "" {
		s.Name = DefaultName
	}
	return s
}

// Clock returns the animation clock described by the session.
func (s Session) Clock() wave.Clock {
	return wave.Clock{LoopDuration: s.LoopDuration, Speed: s.Speed}
}

// Frame snapshots the session for rendering.
func (s Session) Frame() render.Frame {
	return render.Snapshot(s.Stack, s.Config, s.Mode)
}
