package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/catalog"
	"github.com/derickschaefer/timedeck/internal/render"
)

// Version is overwritten at build time:
//
//	go build -ldflags "-X github.com/derickschaefer/timedeck/cmd.Version=v0.3.1"
var Version = "v0.3.0"

// versionInfo describes the binary and the data it was built with.
type versionInfo struct {
	Version       string `json:"version"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
	Tzdata        string `json:"tzdata"`
	Catalog       string `json:"catalog"`
	CatalogCities int    `json:"catalog_cities"`
	Storage       string `json:"storage"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the timedeck version, catalog and storage backend",
	Long: `Print the timedeck version together with the data it runs on: the
timezone database source, the city catalog in use and its size, and the
configured storage backend. Nothing is opened or written.`,
	Example: `  timedeck version
  timedeck version --format json | jq .catalog_cities`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cat, err := catalog.Load(cfg.CatalogPath)
		if err != nil {
			return err
		}

		info := versionInfo{
			Version:       Version,
			GoVersion:     runtime.Version(),
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			Tzdata:        "embedded (time/tzdata)",
			Catalog:       "embedded",
			CatalogCities: cat.Len(),
			Storage:       cfg.Storage,
		}
		if cfg.CatalogPath != "" {
			info.Catalog = cfg.CatalogPath
		}

		out := cmd.OutOrStdout()
		if globalFlags.Format == render.FormatJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Fprintf(out, "timedeck %s\n", info.Version)
		printKVTable(out, [][2]string{
			{"go", info.GoVersion},
			{"platform", info.Platform},
			{"tzdata", info.Tzdata},
			{"catalog", fmt.Sprintf("%s (%d cities)", info.Catalog, info.CatalogCities)},
			{"storage", info.Storage},
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
