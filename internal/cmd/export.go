package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/fourierwaves/internal/archive"
	"github.com/MeKo-Tech/fourierwaves/internal/export"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one full loop as a frame sequence",
	Long: `Export renders frames evenly spaced over one loop (t = i/frames) with the
tiling preview disabled, so every frame tiles and the sequence loops.

The output kind is inferred from --output: a .zip file, a frame pack
(.wavepack, .sqlite, .db) or otherwise a folder of PNG files.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "Output folder, .zip or .wavepack (default fourier_waves_<mode>_<n>frames.zip)")
	exportCmd.Flags().String("format", "", "Output kind override: folder, zip or pack")
	exportCmd.Flags().Int("size", 0, "Frame size in pixels (default: preset export resolution)")
	exportCmd.Flags().IntP("frames", "n", 0, "Number of frames (default: preset export frame count)")
	exportCmd.Flags().String("mode", "", "Output mode override: normal or height")
	exportCmd.Flags().String("convention", "", "Normal convention override: opengl or directx")
	exportCmd.Flags().Bool("deep", false, "Write 16-bit height maps")
	exportCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	exportCmd.Flags().Bool("progress", true, "Show progress bar")
	exportCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	exportCmd.Flags().String("contact-sheet", "", "Also write a PNG overview of all frames to this path")
	exportCmd.Flags().Int("sheet-columns", 0, "Contact sheet columns (default: square-ish grid)")
	exportCmd.Flags().Int("thumb-size", 0, "Contact sheet thumbnail size in pixels")

	bindFlags(exportCmd, map[string]string{
		"export.output":          "output",
		"export.format":          "format",
		"export.size":            "size",
		"export.frames":          "frames",
		"export.mode":            "mode",
		"export.convention":      "convention",
		"export.deep":            "deep",
		"export.workers":         "workers",
		"export.progress":        "progress",
		"export.png_compression": "png-compression",
		"export.contact_sheet":   "contact-sheet",
		"export.sheet_columns":   "sheet-columns",
		"export.thumb_size":      "thumb-size",
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	session, err := loadSession()
	if err != nil {
		return err
	}
	if err := applyOverrides(&session, viper.GetString("export.mode"), viper.GetString("export.convention")); err != nil {
		return err
	}

	kind, err := parseKind(viper.GetString("export.format"))
	if err != nil {
		return err
	}
	frames := viper.GetInt("export.frames")
	if frames < 0 {
		return fmt.Errorf("--frames must be positive")
	}
	size := viper.GetInt("export.size")
	if size < 0 {
		return fmt.Errorf("--size must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	summary, err := export.Run(ctx, session, export.Options{
		Output:       viper.GetString("export.output"),
		Kind:         kind,
		Size:         size,
		Frames:       frames,
		Workers:      viper.GetInt("export.workers"),
		Compression:  viper.GetString("export.png_compression"),
		Deep:         viper.GetBool("export.deep"),
		ContactSheet: viper.GetString("export.contact_sheet"),
		SheetColumns: viper.GetInt("export.sheet_columns"),
		ThumbSize:    viper.GetInt("export.thumb_size"),
		Progress:     viper.GetBool("export.progress"),
	}, logger)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", summary.Output)
	return nil
}

// parseKind parses an output kind name. An empty name means the kind is
// inferred from the output path.
func parseKind(s string) (archive.Kind, error) {
	switch k := archive.Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", archive.KindFolder, archive.KindZip, archive.KindPack:
		return k, nil
	default:
		return "", fmt.Errorf("invalid format %q: must be 'folder', 'zip' or 'pack'", s)
	}
}
