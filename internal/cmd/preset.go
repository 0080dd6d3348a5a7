package cmd

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/fourierwaves/internal/preset"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Create and inspect preset files",
}

var presetInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default preset",
	Long:  "Write the default preset (four active layers of eight) to path, default preset.yaml. The format follows the extension.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPresetInit,
}

var presetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective preset after defaults and clamping",
	RunE:  runPresetShow,
}

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetInitCmd, presetShowCmd)

	presetInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	presetInitCmd.Flags().String("name", preset.DefaultName, "Preset name")
	presetShowCmd.Flags().String("format", "yaml", "Output format: json or yaml")

	bindFlags(presetInitCmd, map[string]string{
		"preset_init.force": "force",
		"preset_init.name":  "name",
	})
	bindFlags(presetShowCmd, map[string]string{
		"preset_show.format": "format",
	})
}

func runPresetInit(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	path := "preset.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	session := preset.Default()
	session.Name = viper.GetString("preset_init.name")

	if err := writeNewPreset(path, session, viper.GetBool("preset_init.force")); err != nil {
		return err
	}
	logger.Info("Preset written", "path", path, "format", preset.FormatFromPath(path))
	return nil
}

func runPresetShow(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	session, err := loadSession()
	if err != nil {
		return err
	}
	format, err := preset.ParseFormat(viper.GetString("preset_show.format"))
	if err != nil {
		return err
	}
	return preset.Encode(cmd.OutOrStdout(), session, format)
}

// writeNewPreset saves session to path, refusing to replace an existing file
// unless force is set.
func writeNewPreset(path string, session preset.Session, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	return preset.Save(path, session)
}
