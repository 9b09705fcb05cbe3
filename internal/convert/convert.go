// Package convert projects a wall-clock time typed for one timezone into the
// local time of a set of target cities.
//
// The input carries no date. "Today" is taken from the viewer's calendar and
// that moment is rendered in the source and target zones; offsets are the
// difference between those two wall clocks. No absolute-instant resolution is
// attempted, so a conversion on a DST transition day can be off by the
// transition amount.
package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/derickschaefer/timedeck/internal/clock"
	"github.com/derickschaefer/timedeck/internal/model"
	"github.com/derickschaefer/timedeck/internal/observe"
	"github.com/derickschaefer/timedeck/internal/timeparse"
)

// DefaultSourceTimezone is used when a conversion names no source zone.
const DefaultSourceTimezone = "America/New_York"

// ErrInvalidTimezone is matched by every *TimezoneError.
var ErrInvalidTimezone = errors.New("invalid timezone")

// TimezoneError reports a source timezone the runtime does not recognize.
type TimezoneError struct {
	Timezone string
}

func (e *TimezoneError) Error() string {
	return fmt.Sprintf("invalid timezone %q", e.Timezone)
}

// Unwrap lets errors.Is match ErrInvalidTimezone.
func (e *TimezoneError) Unwrap() error { return ErrInvalidTimezone }

// Hint suggests the expected identifier form.
func (e *TimezoneError) Hint() string {
	return `Use an IANA identifier such as "America/New_York" or "Asia/Tokyo"`
}

// Projector computes ConversionResults.
type Projector struct {
	engine   *clock.Engine
	viewer   *time.Location
	now      func() time.Time
	observer observe.Observer
	logger   *slog.Logger
}

// Option configures a Projector.
type Option func(*Projector)

// WithViewer sets the location whose calendar date is "today".
func WithViewer(loc *time.Location) Option {
	return func(p *Projector) {
		if loc != nil {
			p.viewer = loc
		}
	}
}

// WithNow overrides the clock used to find today's date.
func WithNow(now func() time.Time) Option {
	return func(p *Projector) {
		if now != nil {
			p.now = now
		}
	}
}

// WithObserver reports conversion timings to o.
func WithObserver(o observe.Observer) Option {
	return func(p *Projector) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger sets the logger (slog.Default otherwise).
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProjector returns a Projector formatting through engine. The viewer
// defaults to the host's local zone.
func NewProjector(engine *clock.Engine, opts ...Option) *Projector {
	p := &Projector{
		engine:   engine,
		viewer:   time.Local,
		now:      time.Now,
		observer: observe.Nop{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.engine == nil {
		p.engine = clock.New(p.logger)
	}
	return p
}

// Project returns one result per target, in target order. Target zones the
// runtime does not recognize are projected in UTC by the clock engine.
func (p *Projector) Project(parsed model.ParsedTime, sourceTZ string, targets []model.City) []model.ConversionResult {
	stop := p.observer.Start("convert.project")
	defer stop()

	base := p.base(parsed)
	srcLocal, _ := p.engine.In(base, sourceTZ)
	srcWall := wallClock(srcLocal)

	results := make([]model.ConversionResult, 0, len(targets))
	for _, city := range targets {
		local, _ := p.engine.In(base, city.Timezone)
		wall := wallClock(local)

		hours := roundHalfUp(wall.Sub(srcWall).Hours())
		days := int(calendarDay(wall).Sub(calendarDay(srcWall)).Hours() / 24)

		results = append(results, model.ConversionResult{
			City:        city,
			LocalHour:   wall.Hour(),
			LocalMinute: wall.Minute(),
			Time:        wall.Format(clock.TimeLayout),
			Date:        wall.Format(clock.DateLayout),
			Phase:       clock.PhaseForHour(wall.Hour()),
			HourOffset:  hours,
			DayOffset:   days,
			Relative:    OffsetPhrase(hours, days),
		})
	}
	return results
}

// Convert parses phrase, validates sourceTZ and projects into targets. An
// empty sourceTZ means DefaultSourceTimezone. Failures are either a
// *timeparse.ParseError or a *TimezoneError, and no results are returned.
func (p *Projector) Convert(phrase, sourceTZ string, targets []model.City) (model.Conversion, error) {
	stop := p.observer.Start("convert")
	defer stop()

	parsed, err := timeparse.Parse(phrase)
	if err != nil {
		return model.Conversion{}, err
	}
	if sourceTZ == "" {
		sourceTZ = DefaultSourceTimezone
	}
	if !clock.IsValidTimezone(sourceTZ) {
		return model.Conversion{}, &TimezoneError{Timezone: sourceTZ}
	}

	results := p.Project(parsed, sourceTZ, targets)
	p.logger.Debug("converted time",
		"input", phrase, "parsed", parsed.String(), "source", sourceTZ, "targets", len(results))

	return model.Conversion{
		Input:          phrase,
		Parsed:         parsed,
		SourceTimezone: sourceTZ,
		Results:        results,
		Share:          ShareText(phrase, sourceTZ, results),
	}, nil
}

// base is today's date in the viewer's zone at the parsed hour and minute.
func (p *Projector) base(parsed model.ParsedTime) time.Time {
	today := p.now().In(p.viewer)
	return time.Date(today.Year(), today.Month(), today.Day(), parsed.Hour, parsed.Minute, 0, 0, p.viewer)
}

// OffsetPhrase renders signed offsets as "2 hrs ahead, +1 day". Zero clauses
// are omitted; both zero is "Same time".
func OffsetPhrase(hours, days int) string {
	var parts []string
	switch {
	case hours > 0:
		parts = append(parts, fmt.Sprintf("%d %s ahead", hours, plural(hours, "hr")))
	case hours < 0:
		parts = append(parts, fmt.Sprintf("%d %s behind", -hours, plural(-hours, "hr")))
	}
	switch {
	case days == 1:
		parts = append(parts, "+1 day")
	case days > 1:
		parts = append(parts, fmt.Sprintf("+%d days", days))
	case days == -1:
		parts = append(parts, "-1 day")
	case days < -1:
		parts = append(parts, fmt.Sprintf("%d days", days))
	}
	if len(parts) == 0 {
		return "Same time"
	}
	return strings.Join(parts, ", ")
}

// ShareText renders results as plain text for copying.
func ShareText(phrase, sourceTZ string, results []model.ConversionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Time Conversion: %s %s\n\n", phrase, ZoneLabel(sourceTZ))
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s %s (%s)", r.City.Name, r.Time, r.Phase.Icon(), r.Relative)
	}
	b.WriteString("\n\nGenerated by TimeDeck")
	return b.String()
}

// ZoneLabel turns "America/New_York" into "New York".
func ZoneLabel(tz string) string {
	label := tz
	if i := strings.LastIndex(tz, "/"); i >= 0 {
		label = tz[i+1:]
	}
	if label == "" {
		return tz
	}
	return strings.ReplaceAll(label, "_", " ")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// roundHalfUp matches the rounding used for displayed offsets: halves round
// toward positive infinity, so -2.5 becomes -2.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// wallClock re-reads t's local fields as a UTC time so that differences
// between zones are plain wall-clock differences.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
