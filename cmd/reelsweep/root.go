package main

import (
	"github.com/spf13/cobra"

	"reelsweep/pkg/config"
	"reelsweep/pkg/logger"
)

var (
	cfgFile  string
	logLevel string
	logFile  string
	minimal  bool
)

var rootCmd = &cobra.Command{
	Use:   "reelsweep",
	Short: "Collect Instagram reels into a spreadsheet ledger",
	Long: `reelsweep walks Instagram profiles, records new reel links in a
Google Sheets ledger, fetches captions, and optionally moves the media
into Google Drive.

Configuration comes from a YAML file (.reelsweep.yaml by default),
overridden by REELSWEEP_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&minimal, "minimal", false, "only log warnings and errors to the console")
}

// loadConfig builds the effective configuration from file, env and
// the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
	if minimal {
		cfg.Logging.Minimal = true
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) (logger.Logger, error) {
	return logger.New(logger.Options{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Minimal: cfg.Logging.Minimal,
	})
}
