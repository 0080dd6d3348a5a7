package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/MeKo-Tech/fourierwaves/internal/preset"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fourierwaves",
	Short: "A seamless, looping normal map generator",
	Long: `FourierWaves synthesizes tileable, perfectly looping normal maps and height
maps from up to eight layered directional sine waves.

Each layer can be sharpened into crests and distorted by tileable noise.
Frames can be rendered one at a time, exported as a full loop to a folder,
zip archive or frame pack, or previewed live over HTTP and WebSocket.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringP("preset", "p", "", "Preset file (JSON or YAML); defaults are used when empty")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	if err := viper.BindPFlag("preset_path", rootCmd.PersistentFlags().Lookup("preset")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("FOURIERWAVES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// bindFlags binds each flag of cmd to its viper key.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
}

// loadSession reads the preset named by --preset, or returns the defaults.
func loadSession() (preset.Session, error) {
	path := viper.GetString("preset_path")
	if path == "" {
		return preset.Default(), nil
	}
	session, err := preset.Load(path)
	if err != nil {
		return preset.Session{}, err
	}
	logger.Debug("Preset loaded", "path", path, "name", session.Name, "layers", session.Stack.Count)
	return session, nil
}
