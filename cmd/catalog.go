package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the cities that can be tracked",
	Long: `The catalog is the read-only list of cities timedeck knows about. A custom
catalog can be supplied as YAML with the catalog_path config key.`,
}

var catalogAvailable bool

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every catalog city",
	Example: `  timedeck catalog list
  timedeck catalog list --available --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalogSearch(cmd, "catalog list", "")
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search <QUERY>",
	Short: "Find catalog cities by name or country",
	Example: `  timedeck catalog search japan
  timedeck catalog search "new york"
  timedeck catalog search vietnam --available`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCatalogSearch(cmd, "catalog search "+args[0], args[0])
	},
}

func runCatalogSearch(cmd *cobra.Command, command, query string) error {
	deps, err := buildDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer deps.Close()

	start := time.Now()
	var cities []model.City
	if catalogAvailable {
		cities = deps.Dashboard.Available(query)
	} else {
		cities = deps.Dashboard.Search(query)
	}
	if cities == nil {
		cities = []model.City{}
	}
	return emit(cmd, deps, newResult(model.KindCities, command, cities, len(cities), start))
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSearchCmd)

	catalogCmd.PersistentFlags().BoolVar(&catalogAvailable, "available", false, "leave out cities that are already tracked")
}
