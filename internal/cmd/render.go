package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/fourierwaves/internal/preset"
	"github.com/MeKo-Tech/fourierwaves/internal/render"
	"github.com/MeKo-Tech/fourierwaves/internal/wave"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a single frame",
	Long: `Render one frame of the loop at phase t (0 <= t < 1) to a PNG file.

Without --seamless the tiling preview factor of the preset is applied, which
is what the live preview shows.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("output", "o", "", "Output PNG path (default wave_<mode>.png)")
	renderCmd.Flags().Int("size", 0, "Image size in pixels (default: preset export resolution)")
	renderCmd.Flags().Float64P("time", "t", 0, "Loop phase; values outside [0,1) wrap")
	renderCmd.Flags().String("mode", "", "Output mode override: normal or height")
	renderCmd.Flags().String("convention", "", "Normal convention override: opengl or directx")
	renderCmd.Flags().Bool("seamless", false, "Disable the tiling preview so the frame tiles")
	renderCmd.Flags().Bool("deep", false, "Write 16-bit height maps")
	renderCmd.Flags().Bool("seam-check", false, "Shift the seamless frame by half its size so tile borders meet in the middle")
	renderCmd.Flags().IntP("workers", "w", 0, "Number of parallel row bands (default: number of CPUs)")
	renderCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")

	bindFlags(renderCmd, map[string]string{
		"render.output":          "output",
		"render.size":            "size",
		"render.time":            "time",
		"render.mode":            "mode",
		"render.convention":      "convention",
		"render.seamless":        "seamless",
		"render.deep":            "deep",
		"render.seam_check":      "seam-check",
		"render.workers":         "workers",
		"render.png_compression": "png-compression",
	})
}

func runRender(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	session, err := loadSession()
	if err != nil {
		return err
	}
	if err := applyOverrides(&session, viper.GetString("render.mode"), viper.GetString("render.convention")); err != nil {
		return err
	}

	t, err := normalizePhase(viper.GetFloat64("render.time"))
	if err != nil {
		return err
	}
	size := viper.GetInt("render.size")
	if size <= 0 {
		size = session.ExportRes
	}
	output := viper.GetString("render.output")
	if output == "" {
		output = fmt.Sprintf("wave_%s.png", session.Mode)
	}

	seamCheck := viper.GetBool("render.seam_check")
	frame := session.Frame()
	if viper.GetBool("render.seamless") || seamCheck {
		frame = frame.ForExport()
	}

	r := &render.Renderer{
		Workers: viper.GetInt("render.workers"),
		Deep:    viper.GetBool("render.deep"),
	}

	logger.Info("Rendering frame",
		"mode", session.Mode,
		"size", size,
		"t", t,
		"layers", session.Stack.Count,
		"tiling", frame.Config.TilingPreview,
	)

	img, err := r.Render(context.Background(), frame, size, t)
	if err != nil {
		return fmt.Errorf("failed to render frame: %w", err)
	}
	if seamCheck {
		img = render.SeamCheck(img)
	}
	data, err := render.EncodePNG(img, viper.GetString("render.png_compression"))
	if err != nil {
		return err
	}

	if err := writeFile(output, data); err != nil {
		return err
	}
	logger.Info("Frame written", "path", output, "bytes", len(data))
	return nil
}

// applyOverrides replaces the session's output mode and normal convention
// when the corresponding flag is set.
func applyOverrides(session *preset.Session, mode, convention string) error {
	if mode != "" {
		m, err := wave.ParseOutputMode(mode)
		if err != nil {
			return err
		}
		session.Mode = m
	}
	if convention != "" {
		c, err := wave.ParseNormalConvention(convention)
		if err != nil {
			return err
		}
		session.Config.Convention = c
	}
	return nil
}

// normalizePhase wraps t into [0,1).
func normalizePhase(t float64) (float64, error) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("invalid time %v", t)
	}
	return t - math.Floor(t), nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
