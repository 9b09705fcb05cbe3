package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/render"
	"github.com/derickschaefer/timedeck/internal/store"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and manage the local database",
	Long: `Commands for inspecting and clearing the local bbolt database that holds
the tracked city list. They need --storage bolt (the default).`,
}

// ─── store info ───────────────────────────────────────────────────────────────

var storeInfoCmd = &cobra.Command{
	Use:     "info",
	Short:   "Show database path, schema version and installation id",
	Example: `  timedeck store info --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()
		s, err := deps.RequireStore()
		if err != nil {
			return err
		}

		meta, err := s.Meta()
		if err != nil {
			return fmt.Errorf("reading store meta: %w", err)
		}
		if resolveFormat(deps.Config.Format) == render.FormatJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Path string `json:"path"`
				store.Meta
			}{s.Path(), meta})
		}
		printKVTable(cmd.OutOrStdout(), [][2]string{
			{"path", s.Path()},
			{"schema_version", fmt.Sprintf("%d", meta.SchemaVersion)},
			{"created_at", meta.CreatedAt.Format(time.RFC3339)},
			{"installation_id", meta.InstallationID},
		})
		return nil
	},
}

// ─── store stats ──────────────────────────────────────────────────────────────

var storeStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  timedeck store stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()
		s, err := deps.RequireStore()
		if err != nil {
			return err
		}

		stats, err := s.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		// Sort by bucket name for deterministic output
		sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n\n", s.Path())
		printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, st := range stats {
				add(st.Name, fmt.Sprintf("%d", st.Count), humanBytes(st.Bytes))
			}
		})
		return nil
	},
}

// ─── store clear ──────────────────────────────────────────────────────────────

var storeClearYes bool

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete everything in the local database",
	Long: `Delete every entry in the dashboard bucket, including the saved city list.

Note: bbolt does not shrink the database file automatically after clearing.
Free pages are reused internally on the next write.`,
	Example: `  timedeck store clear --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !storeClearYes {
			return fmt.Errorf("refusing to clear without --yes")
		}
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()
		s, err := deps.RequireStore()
		if err != nil {
			return err
		}

		if err := s.ClearAll(); err != nil {
			return fmt.Errorf("clearing store: %w", err)
		}
		if !deps.Config.Quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared all buckets")
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeInfoCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeClearCmd)

	storeClearCmd.Flags().BoolVar(&storeClearYes, "yes", false, "confirm deleting all stored data")
}
