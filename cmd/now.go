package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/model"
)

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Show the current time in every tracked city",
	Example: `  timedeck now
  timedeck now --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		readings := deps.Dashboard.Readings(start)
		result := newResult(model.KindReadings, "now", readings, len(readings), start)
		result.Warnings = deps.Dashboard.LoadWarnings()
		return emit(cmd, deps, result)
	},
}

func init() {
	rootCmd.AddCommand(nowCmd)
}
