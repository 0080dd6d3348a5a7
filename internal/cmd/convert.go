package cmd

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/fourierwaves/internal/archive"
	"github.com/MeKo-Tech/fourierwaves/internal/preset"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <pack>",
	Short: "Extract the frames of a frame pack into a folder",
	Long:  `Extract every frame of a frame pack as wave_<mode>_<index>.png, plus the preset it was exported with.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runUnpack,
}

var packCmd = &cobra.Command{
	Use:   "pack <dir>",
	Short: "Convert a folder of exported frames to a frame pack",
	Long:  `Convert a folder of wave_<mode>_<index>.png frames to a frame pack.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPack,
}

func init() {
	rootCmd.AddCommand(unpackCmd, packCmd)

	unpackCmd.Flags().StringP("output-dir", "o", "", "Output directory (default: pack name without extension)")
	unpackCmd.Flags().Bool("with-preset", true, "Also write preset.json from the pack metadata")

	packCmd.Flags().StringP("output", "o", "", "Output frame pack path (default: <dir>"+archive.PackExt+")")
	packCmd.Flags().String("name", preset.DefaultName, "Pack name")

	bindFlags(unpackCmd, map[string]string{
		"unpack.output_dir":  "output-dir",
		"unpack.with_preset": "with-preset",
	})
	bindFlags(packCmd, map[string]string{
		"pack.output": "output",
		"pack.name":   "name",
	})
}

func runUnpack(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	packPath := args[0]
	outputDir := viper.GetString("unpack.output_dir")
	if outputDir == "" {
		outputDir = strings.TrimSuffix(packPath, filepath.Ext(packPath))
	}

	n, err := unpackFrames(packPath, outputDir, viper.GetBool("unpack.with_preset"))
	if err != nil {
		return err
	}
	logger.Info("Unpack complete", "pack", packPath, "output_dir", outputDir, "frames", n)
	return nil
}

// unpackFrames writes every frame of the pack at packPath into dir and
// returns the number of frames written.
func unpackFrames(packPath, dir string, withPreset bool) (int, error) {
	reader, err := archive.OpenPack(packPath)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	meta, err := reader.Metadata()
	if err != nil {
		return 0, err
	}
	indices, err := reader.Indices()
	if err != nil {
		return 0, err
	}

	folder, err := archive.NewFolder(dir, meta.Mode)
	if err != nil {
		return 0, err
	}
	defer folder.Close()

	for _, index := range indices {
		data, err := reader.Frame(index)
		if err != nil {
			return 0, err
		}
		if err := folder.WriteFrame(index, data); err != nil {
			return 0, err
		}
	}

	if withPreset && meta.Preset != "" {
		if err := os.WriteFile(filepath.Join(dir, "preset.json"), []byte(meta.Preset), 0o644); err != nil {
			return 0, fmt.Errorf("failed to write preset: %w", err)
		}
	}
	return len(indices), nil
}

func runPack(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	inputDir := filepath.Clean(args[0])
	output := viper.GetString("pack.output")
	if output == "" {
		output = inputDir + archive.PackExt
	}

	if _, err := os.Stat(inputDir); os.IsNotExist(err) {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}

	n, err := packFrames(inputDir, output, viper.GetString("pack.name"))
	if err != nil {
		return err
	}
	logger.Info("Conversion complete", "output", output, "frames", n)
	return nil
}

// packFrames writes the frames found in dir to a new frame pack. A
// preset.json next to the frames is stored as the pack's preset.
func packFrames(dir, output, name string) (int, error) {
	frames, mode, err := scanFramesDirectory(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to scan frames directory: %w", err)
	}
	if len(frames) == 0 {
		return 0, fmt.Errorf("no frames found in %s", dir)
	}

	meta := archive.Metadata{Name: name, Mode: mode, Frames: len(frames)}
	if doc, err := os.ReadFile(filepath.Join(dir, "preset.json")); err == nil {
		meta.Preset = string(doc)
		if session, err := preset.DecodeBytes(doc, preset.FormatJSON); err == nil {
			meta.LoopDuration = session.LoopDuration
			meta.Convention = session.Config.Convention.String()
		}
	}

	size, err := frameSize(frames[0].path)
	if err != nil {
		return 0, err
	}
	meta.Size = size

	writer, err := archive.NewPack(output, meta)
	if err != nil {
		return 0, err
	}

	for _, f := range frames {
		data, err := os.ReadFile(f.path)
		if err != nil {
			writer.Abort()
			return 0, fmt.Errorf("failed to read frame: %w", err)
		}
		if err := writer.WriteFrame(f.index, data); err != nil {
			writer.Abort()
			return 0, err
		}
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize pack: %w", err)
	}
	return len(frames), nil
}

// frameSize returns the width of the PNG at path.
func frameSize(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return cfg.Width, nil
}

type frameFile struct {
	index int
	path  string
}

var framePattern = regexp.MustCompile(`^wave_([a-z]+)_(\d+)\.png$`)

// scanFramesDirectory lists the exported frames in dir sorted by index, and
// the output mode named in their file names.
func scanFramesDirectory(dir string) ([]frameFile, string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, "", err
	}

	var (
		frames []frameFile
		mode   string
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := framePattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		if mode == "" {
			mode = matches[1]
		} else if matches[1] != mode {
			return nil, "", fmt.Errorf("mixed output modes in %s: %s and %s", dir, mode, matches[1])
		}
		index, _ := strconv.Atoi(matches[2])
		frames = append(frames, frameFile{index: index, path: filepath.Join(dir, e.Name())})
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].index < frames[j].index })
	return frames, mode, nil
}
