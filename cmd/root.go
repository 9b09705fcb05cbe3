// Package cmd implements the timedeck CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/app"
	"github.com/derickschaefer/timedeck/internal/config"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	Format   string
	Out      string
	DBPath   string
	Storage  string
	LogLevel string
	Quiet    bool
	Verbose  bool
}

// rootCmd is the base command. Running `timedeck` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "timedeck",
	Short: "timedeck: world clock dashboard",
	Long: `timedeck keeps a list of cities you care about and shows the local time,
date, zone abbreviation and time of day in each of them. It also converts a
time phrase like "3pm" from one timezone to every tracked city.

The tracked list is saved in a local bbolt database by default, or on a
Valkey server with --storage valkey.

Quick start:
  timedeck catalog search japan      # find city ids
  timedeck cities add tokyo-jp london-gb
  timedeck now                       # current time in every tracked city
  timedeck convert "3 PM" --from America/New_York
  timedeck watch                     # live dashboard`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves and validates config with the CLI flag layer applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Overrides{
		Format:   globalFlags.Format,
		DBPath:   globalFlags.DBPath,
		Storage:  globalFlags.Storage,
		LogLevel: globalFlags.LogLevel,
	})
	if err != nil {
		return nil, err
	}
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE. Logs go to stderr so stdout
// stays clean for rendered output.
func buildDeps(ctx context.Context) (*app.Deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return app.New(ctx, cfg, logger)
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.DBPath, "db", "",
		"bbolt database path (overrides env TIMEDECK_DB_PATH and config.json)")
	pf.StringVar(&globalFlags.Storage, "storage", "",
		"where the tracked list is saved: bolt|valkey|memory (default: bolt)")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "",
		"log level: debug|info|warn|error (default: warn)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after output")
}
