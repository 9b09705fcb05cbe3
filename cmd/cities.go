package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/catalog"
	"github.com/derickschaefer/timedeck/internal/model"
	"github.com/derickschaefer/timedeck/internal/registry"
)

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Manage the tracked city list",
	Long: `Add, remove and reorder the cities shown by 'timedeck now' and 'timedeck watch'.

City ids come from the catalog; find them with 'timedeck catalog search <query>'.
Changes are saved immediately. When storage is unavailable the change still
applies for this run and a warning is printed.`,
}

// ─── cities list ──────────────────────────────────────────────────────────────

var citiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked cities in display order",
	Example: `  timedeck cities list
  timedeck cities list --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		cities := deps.Dashboard.Cities()
		result := newResult(model.KindCities, "cities list", cities, len(cities), start)
		result.Warnings = deps.Dashboard.LoadWarnings()
		return emit(cmd, deps, result)
	},
}

// ─── cities add ───────────────────────────────────────────────────────────────

var citiesAddCmd = &cobra.Command{
	Use:   "add <CITY_ID...>",
	Short: "Start tracking one or more catalog cities",
	Example: `  timedeck cities add tokyo-jp
  timedeck cities add london-gb new-york-us`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		var changes []registry.Change
		var warnings []string
		for _, id := range normaliseIDs(args) {
			ch, err := deps.Dashboard.OnCitySelect(cmd.Context(), id)
			switch {
			case errors.Is(err, registry.ErrAlreadyTracked):
				warnings = append(warnings, fmt.Sprintf("%s is already tracked", id))
				continue
			case errors.Is(err, catalog.ErrUnknownCity):
				return fmt.Errorf("%w\n\n  Find ids with: timedeck catalog search <query>", err)
			case err != nil:
				return err
			}
			changes = append(changes, ch)
		}

		cities := deps.Dashboard.Cities()
		result := newResult(model.KindCities, "cities add "+strings.Join(args, " "), cities, len(cities), start)
		result.Warnings = append(warnings, changeWarnings(changes...)...)
		return emit(cmd, deps, result)
	},
}

// ─── cities remove ────────────────────────────────────────────────────────────

var citiesRemoveCmd = &cobra.Command{
	Use:     "remove <CITY_ID...>",
	Aliases: []string{"rm"},
	Short:   "Stop tracking one or more cities",
	Example: `  timedeck cities remove tokyo-jp`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		var changes []registry.Change
		for _, id := range normaliseIDs(args) {
			changes = append(changes, deps.Dashboard.OnCityRemove(cmd.Context(), id))
		}

		cities := deps.Dashboard.Cities()
		result := newResult(model.KindCities, "cities remove "+strings.Join(args, " "), cities, len(cities), start)
		result.Warnings = changeWarnings(changes...)
		return emit(cmd, deps, result)
	},
}

// ─── cities move ──────────────────────────────────────────────────────────────

var citiesMoveCmd = &cobra.Command{
	Use:   "move <CITY_ID> <POSITION>",
	Short: "Move a tracked city to a 1-based position",
	Example: `  timedeck cities move tokyo-jp 1`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := parsePosition(args[1])
		if err != nil {
			return err
		}
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		ch, err := deps.Dashboard.OnMove(cmd.Context(), normaliseIDs(args[:1])[0], pos-1)
		if err != nil {
			return err
		}
		result := newResult(model.KindCities, "cities move "+strings.Join(args, " "), ch.Cities, len(ch.Cities), start)
		result.Warnings = changeWarnings(ch)
		return emit(cmd, deps, result)
	},
}

// ─── cities order ─────────────────────────────────────────────────────────────

var citiesOrderCmd = &cobra.Command{
	Use:   "order <CITY_ID...>",
	Short: "Replace the display order; every tracked id must appear once",
	Example: `  timedeck cities order london-gb tokyo-jp new-york-us`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		ids := make([]string, len(args))
		for i, a := range args {
			ids[i] = strings.ToLower(strings.TrimSpace(a))
		}
		ch, err := deps.Dashboard.OnReorder(cmd.Context(), ids)
		if err != nil {
			return fmt.Errorf("order rejected: %w", err)
		}
		result := newResult(model.KindCities, "cities order "+strings.Join(args, " "), ch.Cities, len(ch.Cities), start)
		result.Warnings = changeWarnings(ch)
		return emit(cmd, deps, result)
	},
}

// ─── cities clear ─────────────────────────────────────────────────────────────

var citiesClearYes bool

var citiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Stop tracking every city",
	Example: `  timedeck cities clear --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !citiesClearYes {
			return fmt.Errorf("refusing to clear without --yes")
		}
		deps, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		ch := deps.Dashboard.OnClear(cmd.Context())
		result := newResult(model.KindCities, "cities clear", []model.City{}, 0, start)
		result.Warnings = changeWarnings(ch)
		return emit(cmd, deps, result)
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(citiesCmd)
	citiesCmd.AddCommand(citiesListCmd)
	citiesCmd.AddCommand(citiesAddCmd)
	citiesCmd.AddCommand(citiesRemoveCmd)
	citiesCmd.AddCommand(citiesMoveCmd)
	citiesCmd.AddCommand(citiesOrderCmd)
	citiesCmd.AddCommand(citiesClearCmd)

	citiesClearCmd.Flags().BoolVar(&citiesClearYes, "yes", false, "confirm removing every tracked city")
}
