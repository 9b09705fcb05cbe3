package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/app"
	"github.com/derickschaefer/timedeck/internal/model"
	"github.com/derickschaefer/timedeck/internal/registry"
	"github.com/derickschaefer/timedeck/internal/render"
)

// normaliseIDs lower-cases city ids and removes duplicates while preserving
// order.
func normaliseIDs(ids []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// resolveFormat returns the effective format string, falling back to "table".
func resolveFormat(cfgFormat string) string {
	if globalFlags.Format != "" {
		return globalFlags.Format
	}
	if cfgFormat != "" {
		return cfgFormat
	}
	return render.FormatTable
}

// outputWriter returns the --out file when set, otherwise def. The returned
// close function is always safe to call.
func outputWriter(def io.Writer) (io.Writer, func() error, error) {
	if globalFlags.Out == "" {
		return def, func() error { return nil }, nil
	}
	f, err := os.Create(globalFlags.Out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// emit renders result and its footer. --quiet suppresses everything.
func emit(cmd *cobra.Command, deps *app.Deps, result *model.Result) error {
	if deps.Config.Quiet {
		return nil
	}
	w, closeFn, err := outputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := render.Render(w, result, resolveFormat(deps.Config.Format)); err != nil {
		_ = closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	render.PrintFooter(cmd.ErrOrStderr(), result, deps.Config.Verbose)
	if deps.Config.Verbose {
		printTimings(cmd.ErrOrStderr(), deps)
	}
	return nil
}

// printTimings lists the operations the observer recorded during the command.
func printTimings(w io.Writer, deps *app.Deps) {
	timings := deps.Observer.Snapshot()
	if len(timings) == 0 {
		return
	}
	printSimpleTable(w, []string{"OPERATION", "COUNT", "LAST", "TOTAL"}, func(add func(...string)) {
		for _, t := range timings {
			add(t.Name, strconv.Itoa(t.Count), t.Last.String(), t.Total.String())
		}
	})
}

// newResult wraps data in a Result envelope.
func newResult(kind, command string, data interface{}, items int, start time.Time) *model.Result {
	return &model.Result{
		Kind:        kind,
		GeneratedAt: time.Now(),
		Command:     command,
		Data:        data,
		Stats: model.ResultStats{
			DurationMs: time.Since(start).Milliseconds(),
			Items:      items,
		},
	}
}

// changeWarnings collects the durability warning of each change, once each.
func changeWarnings(changes ...registry.Change) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ch := range changes {
		if ch.Warning == nil {
			continue
		}
		msg := ch.Warning.Error()
		if seen[msg] {
			continue
		}
		seen[msg] = true
		out = append(out, msg)
	}
	return out
}

// printSimpleTable renders a simple table with headers using tablewriter.
// The add callback is called with row values as variadic strings.
func printSimpleTable(w io.Writer, headers []string, fill func(add func(...string))) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)

	fill(func(cols ...string) {
		tw.Append(cols)
	})
	tw.Render()
}

// parsePosition parses a 1-based list position as shown by `cities list`.
func parsePosition(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position %q: expected a positive integer", s)
	}
	return n, nil
}

// printKVTable renders a two-column key/value table using aligned columns.
func printKVTable(w io.Writer, rows [][2]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}

func humanBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
