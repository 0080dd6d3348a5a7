package preset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/fourierwaves/internal/wave"
	"gopkg.in/yaml.v3"
)

// DocumentVersion is written into every saved preset.
const DocumentVersion = "1.1"

// Format selects the preset file encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// ParseFormat parses "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return FormatJSON, fmt.Errorf("invalid preset format %q: must be json or yaml", s)
	}
}

// FormatFromPath picks the format from the file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// now is replaced in tests.
var now = time.Now

// document is the wrapped preset layout. A bare settings object is also
// accepted: its fields land in the inlined Settings.
type document struct {
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Timestamp string    `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Settings  *settings `json:"settings,omitempty" yaml:"settings,omitempty"`
	settings  `yaml:",inline"`
}

// settings mirrors the saved state field by field. Pointers distinguish an
// absent key from an explicit zero.
type settings struct {
	LoopDuration     *float64   `json:"loopDuration,omitempty" yaml:"loopDuration,omitempty"`
	Speed            *float64   `json:"speed,omitempty" yaml:"speed,omitempty"`
	LayerCount       *float64   `json:"layerCount,omitempty" yaml:"layerCount,omitempty"`
	OutputMode       *string    `json:"outputMode,omitempty" yaml:"outputMode,omitempty"`
	WaveScale        *float64   `json:"waveScale,omitempty" yaml:"waveScale,omitempty"`
	NormalIntensity  *float64   `json:"normalIntensity,omitempty" yaml:"normalIntensity,omitempty"`
	HeightRange      *float64   `json:"heightRange,omitempty" yaml:"heightRange,omitempty"`
	NormalizeHeights *bool      `json:"normalizeHeights,omitempty" yaml:"normalizeHeights,omitempty"`
	NormalMapFormat  *string    `json:"normalMapFormat,omitempty" yaml:"normalMapFormat,omitempty"`
	TilingPreview    *float64   `json:"tilingPreview,omitempty" yaml:"tilingPreview,omitempty"`
	WaveLayers       []layerDoc `json:"waveLayers,omitempty" yaml:"waveLayers,omitempty"`
	ExportRes        *looseInt  `json:"exportRes,omitempty" yaml:"exportRes,omitempty"`
	ExportFrames     *looseInt  `json:"exportFrames,omitempty" yaml:"exportFrames,omitempty"`
}

type layerDoc struct {
	Amplitude    *float64        `json:"amplitude,omitempty" yaml:"amplitude,omitempty"`
	SpatialFreq  *float64        `json:"spatialFreq,omitempty" yaml:"spatialFreq,omitempty"`
	TemporalFreq *float64        `json:"temporalFreq,omitempty" yaml:"temporalFreq,omitempty"`
	Direction    *wave.Vec2      `json:"direction,omitempty" yaml:"direction,omitempty"`
	Phase        *float64        `json:"phase,omitempty" yaml:"phase,omitempty"`
	Sharpness    *float64        `json:"sharpness,omitempty" yaml:"sharpness,omitempty"`
	NoiseAmount  *float64        `json:"noiseAmount,omitempty" yaml:"noiseAmount,omitempty"`
	NoiseScale   *float64        `json:"noiseScale,omitempty" yaml:"noiseScale,omitempty"`
	NoiseSeed    *float64        `json:"noiseSeed,omitempty" yaml:"noiseSeed,omitempty"`
	Locked       *wave.LockFlags `json:"locked,omitempty" yaml:"locked,omitempty"`
}

// looseInt accepts both 512 and "512". Older presets store export settings
// as strings.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	return n.parse(s)
}

func (n *looseInt) UnmarshalYAML(node *yaml.Node) error {
	return n.parse(node.Value)
}

func (n *looseInt) parse(s string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*n = looseInt(math.Round(f))
	return nil
}

// Load reads a preset file. The format follows the file extension.
func Load(path string) (Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return Session{}, fmt.Errorf("failed to open preset: %w", err)
	}
	defer f.Close()

	s, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return Session{}, fmt.Errorf("failed to load preset %s: %w", path, err)
	}
	return s, nil
}

// Save writes s to path, creating parent directories as needed.
func Save(path string, s Session) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create preset directory: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, s, FormatFromPath(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write preset: %w", err)
	}
	return nil
}

// Decode reads a preset document. Absent fields take their defaults, absent
// lock flags are false and missing layers are filled from the default
// layer list. The result is normalized.
func Decode(r io.Reader, format Format) (Session, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read preset: %w", err)
	}

	var doc document
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to parse %s preset: %w", format, err)
	}

	st := doc.settings
	if doc.Settings != nil {
		st = *doc.Settings
	}
	s, err := st.session()
	if err != nil {
		return Session{}, err
	}
	if doc.Name != "" {
		s.Name = doc.Name
	}
	return s.Normalized(), nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte, format Format) (Session, error) {
	return Decode(bytes.NewReader(data), format)
}

// Encode writes s as a wrapped preset document. All stored layers are
// written, including inactive ones, so a reload restores the full arena.
func Encode(w io.Writer, s Session, format Format) error {
	s = s.Normalized()
	doc := document{
		Version:   DocumentVersion,
		Name:      s.Name,
		Timestamp: now().UTC().Format(time.RFC3339),
		Settings:  newSettings(s),
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&doc); err != nil {
			return fmt.Errorf("failed to encode yaml preset: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode yaml preset: %w", err)
		}
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(&doc); err != nil {
			return fmt.Errorf("failed to encode json preset: %w", err)
		}
	}
	return nil
}

// EncodeBytes is Encode into a byte slice.
func EncodeBytes(s Session, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (st settings) session() (Session, error) {
	s := Default()

	if st.LoopDuration != nil {
		s.LoopDuration = time.Duration(*st.LoopDuration * float64(time.Second))
	}
	if st.Speed != nil {
		s.Speed = *st.Speed
	}
	if st.OutputMode != nil {
		mode, err := wave.ParseOutputMode(*st.OutputMode)
		if err != nil {
			return Session{}, err
		}
		s.Mode = mode
	}
	if st.WaveScale != nil {
		s.Config.WaveScale = *st.WaveScale
	}
	if st.NormalIntensity != nil {
		s.Config.NormalIntensity = *st.NormalIntensity
	}
	if st.HeightRange != nil {
		s.Config.HeightRange = *st.HeightRange
	}
	if st.NormalizeHeights != nil {
		s.Config.NormalizeHeights = *st.NormalizeHeights
	}
	if st.NormalMapFormat != nil {
		conv, err := wave.ParseNormalConvention(*st.NormalMapFormat)
		if err != nil {
			return Session{}, err
		}
		s.Config.Convention = conv
	}
	if st.TilingPreview != nil {
		s.Config.TilingPreview = roundInt(*st.TilingPreview)
	}
	if st.ExportRes != nil {
		s.ExportRes = int(*st.ExportRes)
	}
	if st.ExportFrames != nil {
		s.ExportFrames = int(*st.ExportFrames)
	}

	if st.WaveLayers != nil {
		defaults := wave.DefaultLayers()
		layers := make([]wave.Layer, 0, wave.MaxLayers)
		for i, ld := range st.WaveLayers {
			if i == wave.MaxLayers {
				break
			}
			layers = append(layers, ld.layer(defaults[i]))
		}
		layers = append(layers, defaults[len(layers):]...)
		s.Stack = wave.NewStack(layers, s.Stack.Count)
	}
	if st.LayerCount != nil {
		s.Stack.SetCount(roundInt(*st.LayerCount))
	}
	return s, nil
}

// layer applies the fields present in ld on top of base. Lock flags are
// never inherited from base.
func (ld layerDoc) layer(base wave.Layer) wave.Layer {
	l := base
	l.Locked = wave.LockFlags{}
	if ld.Amplitude != nil {
		l.Amplitude = *ld.Amplitude
	}
	if ld.SpatialFreq != nil {
		l.SpatialFreq = *ld.SpatialFreq
	}
	if ld.TemporalFreq != nil {
		l.TemporalFreq = roundInt(*ld.TemporalFreq)
	}
	if ld.Direction != nil {
		l.Direction = *ld.Direction
	}
	if ld.Phase != nil {
		l.Phase = *ld.Phase
	}
	if ld.Sharpness != nil {
		l.Sharpness = *ld.Sharpness
	}
	if ld.NoiseAmount != nil {
		l.NoiseAmount = *ld.NoiseAmount
	}
	if ld.NoiseScale != nil {
		l.NoiseScale = roundInt(*ld.NoiseScale)
	}
	if ld.NoiseSeed != nil {
		l.NoiseSeed = *ld.NoiseSeed
	}
	if ld.Locked != nil {
		l.Locked = *ld.Locked
	}
	return l
}

func newSettings(s Session) *settings {
	layers := make([]layerDoc, len(s.Stack.Layers))
	for i := range s.Stack.Layers {
		l := s.Stack.Layers[i]
		layers[i] = layerDoc{
			Amplitude:    &l.Amplitude,
			SpatialFreq:  &l.SpatialFreq,
			TemporalFreq: ptr(float64(l.TemporalFreq)),
			Direction:    &l.Direction,
			Phase:        &l.Phase,
			Sharpness:    &l.Sharpness,
			NoiseAmount:  &l.NoiseAmount,
			NoiseScale:   ptr(float64(l.NoiseScale)),
			NoiseSeed:    &l.NoiseSeed,
			Locked:       &l.Locked,
		}
	}
	return &settings{
		LoopDuration:     ptr(s.LoopDuration.Seconds()),
		Speed:            ptr(s.Speed),
		LayerCount:       ptr(float64(s.Stack.Count)),
		OutputMode:       ptr(s.Mode.String()),
		WaveScale:        ptr(s.Config.WaveScale),
		NormalIntensity:  ptr(s.Config.NormalIntensity),
		HeightRange:      ptr(s.Config.HeightRange),
		NormalizeHeights: ptr(s.Config.NormalizeHeights),
		NormalMapFormat:  ptr(s.Config.Convention.String()),
		TilingPreview:    ptr(float64(s.Config.TilingPreview)),
		WaveLayers:       layers,
		ExportRes:        ptr(looseInt(s.ExportRes)),
		ExportFrames:     ptr(looseInt(s.ExportFrames)),
	}
}

func ptr[T any](v T) *T { return &v }

func roundInt(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Round(f))
}
