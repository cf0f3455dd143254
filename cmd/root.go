// Package cmd implements the murmur CLI using cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/murmur/internal/config"
	"github.com/crystaldolphin/murmur/internal/shared/cmdutils"
)

const version = "0.1.0"
const logo = cmdutils.Logo

var (
	flagEnv     string
	flagConfig  string
	flagVerbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "murmur",
	Short: logo + " murmur: voice assistant with tool routing",
	Long: logo + ` murmur answers transcribed speech. Each utterance is routed to a tool
(weather, time, notes, course outlines) or to plain chat by a language model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		setupLogging(flagVerbose)
		if _, err := config.LoadDotEnv(flagEnv, "."); err != nil {
			return err
		}
		slog.Debug("environment set", "env", flagEnv)
		return nil
	},
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", config.EnvDevelopment, "Environment: production, test or development (loads .env.<env>)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.murmur/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Show runtime logs")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(statusCmd)
}

// setupLogging keeps the terminal quiet unless verbose is set.
func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads the config file, applies environment overrides and
// validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
