package render

import (
	"fmt"
	"io"
	"time"

	"github.com/derickschaefer/timedeck/internal/model"
)

// ANSI escape sequences for the live dashboard.
const (
	clearScreen = "\033[2J"
	cursorHome  = "\033[H"
	bold        = "\033[1m"
	reset       = "\033[0m"
	dim         = "\033[2m"
	cyan        = "\033[36m"
)

// Dashboard redraws the live clock view in place.
type Dashboard struct {
	w     io.Writer
	color bool
}

// NewDashboard returns a Dashboard writing to w. With color false no escape
// sequences are written at all, which suits pipes and NO_COLOR.
func NewDashboard(w io.Writer, color bool) *Dashboard {
	return &Dashboard{w: w, color: color}
}

func (d *Dashboard) style(code, s string) string {
	if !d.color {
		return s
	}
	return code + s + reset
}

// Draw renders readings as of now.
func (d *Dashboard) Draw(readings []model.CityReading, now time.Time) {
	if d.color {
		fmt.Fprint(d.w, clearScreen+cursorHome)
	}
	fmt.Fprintf(d.w, "%s %s\n",
		d.style(bold+cyan, "🌍 TimeDeck"),
		d.style(dim, now.UTC().Format("(UTC 2006-01-02 15:04:05)")))

	if len(readings) == 0 {
		fmt.Fprintln(d.w, "No cities tracked. Add one with: timedeck cities add <id>")
	} else {
		tw := newTable(d.w, []string{"CITY", "TIME", "DATE", "ZONE", "PHASE"})
		for _, r := range readings {
			tw.Append(readingRow(r))
		}
		tw.Render()
	}
	fmt.Fprintln(d.w, d.style(dim, "Press Ctrl+C to exit"))
}

// Close restores the terminal after the last frame.
func (d *Dashboard) Close() {
	if d.color {
		fmt.Fprint(d.w, clearScreen+cursorHome)
	}
	fmt.Fprintln(d.w, "Goodbye!")
}
