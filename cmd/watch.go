package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/app"
	"github.com/derickschaefer/timedeck/internal/model"
	"github.com/derickschaefer/timedeck/internal/render"
	"github.com/derickschaefer/timedeck/internal/scheduler"
)

var (
	watchInterval time.Duration
	watchNoColor  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of every tracked city",
	Long: `Redraw the tracked cities whenever a displayed time changes.

The screen is cleared between frames when stdout is a terminal. Set NO_COLOR
or pass --no-color to print plain frames instead. Press Ctrl+C to exit.`,
	Example: `  timedeck watch
  timedeck watch --interval 5s --no-color`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		deps, err := buildDeps(ctx)
		if err != nil {
			return err
		}
		defer deps.Close()

		out := cmd.OutOrStdout()
		dash := render.NewDashboard(out, useColor(out))
		return runWatch(ctx, deps, dash, watchInterval)
	},
}

// runWatch draws a frame on every publish until ctx ends.
func runWatch(ctx context.Context, deps *app.Deps, dash *render.Dashboard, interval time.Duration) error {
	if interval <= 0 {
		interval = deps.Config.RefreshInterval
	}

	var mu sync.Mutex
	draw := func([]model.ZoneReading) {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		dash.Draw(deps.Dashboard.Clock(now), now)
	}

	sched := scheduler.New(deps.Engine, draw,
		scheduler.WithInterval(interval),
		scheduler.WithLogger(deps.Logger),
		scheduler.WithObserver(deps.Observer),
	)
	if len(deps.Dashboard.Cities()) == 0 {
		draw(nil)
	}
	deps.Dashboard.StartClock(ctx, sched)

	<-ctx.Done()
	deps.Dashboard.StopClock()

	mu.Lock()
	dash.Close()
	mu.Unlock()
	return nil
}

// useColor reports whether w is a terminal and colors are wanted.
func useColor(w io.Writer) bool {
	if watchNoColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0,
		"how often to check for changes (default: refresh_interval, 1s)")
	watchCmd.Flags().BoolVar(&watchNoColor, "no-color", false,
		"print plain frames without clearing the screen")
}
