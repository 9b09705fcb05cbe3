package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/model"
)

var (
	convertFrom  string
	convertShare bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <TIME>",
	Short: "Show a time in one zone as local time in every tracked city",
	Long: `Convert a time phrase to every tracked city's local time.

Accepted phrases: "3pm", "3 PM", "3:30 pm", "15:30", "noon", "midnight".
A bare hour from 1 to 7 is read as afternoon ("3" means 15:00).

The date is today's date in your timezone (TIMEDECK_TZ or viewer_timezone
when set). Offsets are computed on that date.`,
	Example: `  timedeck convert "3 PM"
  timedeck convert 9am --from Europe/London
  timedeck convert noon --from Asia/Tokyo --share`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		conv, err := deps.Dashboard.OnConvert(args[0], convertFrom)
		if err != nil {
			var h interface{ Hint() string }
			if errors.As(err, &h) {
				return fmt.Errorf("%w\n\n  %s", err, h.Hint())
			}
			return err
		}

		if convertShare {
			if deps.Config.Quiet {
				return nil
			}
			w, closeFn, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, conv.Share)
			return closeFn()
		}

		result := newResult(model.KindConversion, "convert "+args[0], &conv, len(conv.Results), start)
		if len(conv.Results) == 0 {
			result.Warnings = []string{"no cities tracked; add some with: timedeck cities add <id>"}
		}
		return emit(cmd, deps, result)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convertFrom, "from", "",
		"source timezone, an IANA identifier (default: source_timezone, America/New_York)")
	convertCmd.Flags().BoolVar(&convertShare, "share", false,
		"print the plain-text summary meant for pasting into a message")
}
