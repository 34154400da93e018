package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/adapters/audio"
	"github.com/ewilliams-labs/cadence/internal/config"
	"github.com/ewilliams-labs/cadence/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Running cadence backend: metronome, workout tracking and tempo-matched music",
	Long: `Cadence keeps a runner on pace. It clicks a metronome at the target
steps per minute, times the workout and picks Spotify tracks whose tempo
matches the cadence.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(metronomeCmd)
	rootCmd.AddCommand(clickCmd)
	rootCmd.AddCommand(configCmd)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./cadence.yaml or ~/.cadence/cadence.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this rotated file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges file, environment and the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(config.LoadOptions{File: file, EnvFile: envFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger keeps stdout free for raw PCM when that sink is selected.
func newLogger(cfg *config.Config) (*logrus.Logger, io.Closer, error) {
	var console io.Writer = os.Stdout
	if cfg.Metronome.Sink == audio.SinkPCM {
		console = os.Stderr
	}
	return logger.NewWithOutput(cfg.Log, console)
}
