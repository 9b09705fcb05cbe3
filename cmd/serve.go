package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/api"
	"github.com/derickschaefer/timedeck/internal/scheduler"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API over HTTP",
	Long: `Start an HTTP server exposing the tracked list, conversions and live clock
readings under /api/v1. The clock keeps ticking in the background so
GET /api/v1/clock returns the latest published readings.

Routes:
  GET    /api/v1/healthz
  GET    /api/v1/cities
  POST   /api/v1/cities          {"id": "tokyo-jp"}
  DELETE /api/v1/cities/:id
  PUT    /api/v1/cities/order    {"ids": ["..."]}
  POST   /api/v1/convert         {"time": "3pm", "source_timezone": "America/New_York"}
  GET    /api/v1/clock
  GET    /api/v1/catalog?q=&available=true`,
	Example: `  timedeck serve
  timedeck serve --addr :9090 --storage valkey`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		deps, err := buildDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Close()

		addr := deps.Config.HTTPAddress
		if serveAddr != "" {
			addr = serveAddr
		}

		sched := scheduler.New(deps.Engine, nil,
			scheduler.WithInterval(deps.Config.RefreshInterval),
			scheduler.WithLogger(deps.Logger),
			scheduler.WithObserver(deps.Observer),
		)
		deps.Dashboard.StartClock(ctx, sched)
		defer deps.Dashboard.StopClock()

		if !deps.Config.Quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "timedeck listening on http://%s/api/v1 (Ctrl+C to stop)\n", addr)
			for _, w := range deps.Dashboard.LoadWarnings() {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠  %s\n", w)
			}
		}

		handler := api.NewHandler(deps.Dashboard, deps.Logger)
		return api.Run(ctx, api.NewServer(addr, handler), deps.Logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"listen address (default: http_address, 127.0.0.1:8080)")
}
