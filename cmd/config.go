package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/config"
	"github.com/derickschaefer/timedeck/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage timedeck configuration",
	Long:  `Read and write timedeck configuration stored in config.json.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created %s\n", path)
		fmt.Fprintln(out, "  Set your home timezone with: timedeck config set source_timezone Europe/London")
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the current resolved configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Overrides{
			Format:   globalFlags.Format,
			DBPath:   globalFlags.DBPath,
			Storage:  globalFlags.Storage,
			LogLevel: globalFlags.LogLevel,
		})
		if err != nil {
			return err
		}

		rows := cfg.Settings()
		if len(args) == 1 {
			key := strings.ToLower(args[0])
			for _, r := range rows {
				if r[0] == key {
					fmt.Fprintln(cmd.OutOrStdout(), r[1])
					return nil
				}
			}
			return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, strings.Join(config.Keys(), ", "))
		}

		if resolveFormat(cfg.Format) == render.FormatJSON {
			out := make(map[string]string, len(rows))
			for _, r := range rows {
				out[r[0]] = r[1]
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		printKVTable(cmd.OutOrStdout(), rows)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Long: `Set a configuration value in config.json, creating the file from the
template when it does not exist yet.

Keys: ` + strings.Join(config.Keys(), ", "),
	Example: `  timedeck config set source_timezone Asia/Tokyo
  timedeck config set storage valkey
  timedeck config set valkey_addr redis://localhost:6379/0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile

		// Load existing file or start from template
		f, err := config.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			tmpl := config.Template()
			f = &tmpl
		case err != nil:
			return err
		}

		if err := f.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, *f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", strings.ToLower(args[0]), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
