// Package clock derives display fields for an IANA timezone at an instant:
// a 12-hour time, a short date, the zone abbreviation and the day phase.
//
// The engine never fails. An identifier the runtime's timezone database does
// not know is formatted in UTC, the reading is flagged, and the condition is
// logged at Warn (at most once per minute per identifier, since the refresh
// loop asks every second).
//
// The timezone database is embedded, so results do not depend on the host
// having zoneinfo installed.
package clock

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"golang.org/x/time/rate"

	"github.com/derickschaefer/timedeck/internal/model"
)

const (
	// TimeLayout renders "3:04 PM".
	TimeLayout = "3:04 PM"
	// DateLayout renders "Jan 2, 2006".
	DateLayout = "Jan 2, 2006"

	fallbackLogInterval = time.Minute
)

// Engine formats instants for timezones. It caches loaded locations and is
// safe for concurrent use.
type Engine struct {
	logger *slog.Logger

	mu      sync.Mutex
	locs    map[string]*time.Location
	invalid map[string]*rate.Sometimes
}

// New returns an Engine logging to logger (slog.Default when nil).
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:  logger,
		locs:    make(map[string]*time.Location),
		invalid: make(map[string]*rate.Sometimes),
	}
}

// IsValidTimezone reports whether tz names a zone in the runtime's timezone
// database. The empty string and "Local" are rejected because they do not
// identify a zone independently of the host.
func IsValidTimezone(tz string) bool {
	if tz == "" || tz == "Local" || strings.TrimSpace(tz) != tz {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// PhaseForHour applies the day-phase boundary table to a local hour:
// [5,8) sunrise, [8,17) day, [17,20) sunset, otherwise night.
func PhaseForHour(hour int) model.DayPhase {
	switch {
	case hour >= 5 && hour < 8:
		return model.PhaseSunrise
	case hour >= 8 && hour < 17:
		return model.PhaseDay
	case hour >= 17 && hour < 20:
		return model.PhaseSunset
	default:
		return model.PhaseNight
	}
}

// Format returns the full reading for tz at instant at.
func (e *Engine) Format(tz string, at time.Time) model.ClockReading {
	local, ok := e.In(at, tz)
	return model.ClockReading{
		Time:         local.Format(TimeLayout),
		Date:         local.Format(DateLayout),
		Abbreviation: e.Abbreviate(tz, at),
		Phase:        PhaseForHour(local.Hour()),
		UTCFallback:  !ok,
	}
}

// FormatTime renders at as "3:04 PM" in tz, falling back to UTC.
func (e *Engine) FormatTime(at time.Time, tz string) string {
	local, _ := e.In(at, tz)
	return local.Format(TimeLayout)
}

// FormatDate renders at as "Jan 2, 2006" in tz, falling back to UTC.
func (e *Engine) FormatDate(at time.Time, tz string) string {
	local, _ := e.In(at, tz)
	return local.Format(DateLayout)
}

// DayPhase classifies the local hour of at in tz, falling back to UTC.
func (e *Engine) DayPhase(tz string, at time.Time) model.DayPhase {
	local, _ := e.In(at, tz)
	return PhaseForHour(local.Hour())
}

// Abbreviate returns the short zone label for tz at instant at ("EST",
// "GMT+9"). Unlike the other formatters it does not fall back to UTC: an
// unknown identifier is returned unchanged.
func (e *Engine) Abbreviate(tz string, at time.Time) string {
	loc, ok := e.location(tz)
	if !ok {
		return tz
	}
	name, offset := at.In(loc).Zone()
	if name == "" {
		return gmtLabel(offset)
	}
	if name[0] == '+' || name[0] == '-' {
		return gmtLabel(offset)
	}
	return name
}

// In converts at to tz. The boolean is false when tz was not recognized and
// UTC was used instead.
func (e *Engine) In(at time.Time, tz string) (time.Time, bool) {
	loc, ok := e.location(tz)
	if !ok {
		e.warnFallback(tz)
		return at.In(time.UTC), false
	}
	return at.In(loc), true
}

// location resolves tz through the cache.
func (e *Engine) location(tz string) (*time.Location, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if loc, ok := e.locs[tz]; ok {
		return loc, true
	}
	if _, bad := e.invalid[tz]; bad {
		return nil, false
	}
	if !IsValidTimezone(tz) {
		e.invalid[tz] = &rate.Sometimes{First: 1, Interval: fallbackLogInterval}
		return nil, false
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		e.invalid[tz] = &rate.Sometimes{First: 1, Interval: fallbackLogInterval}
		return nil, false
	}
	e.locs[tz] = loc
	return loc, true
}

func (e *Engine) warnFallback(tz string) {
	e.mu.Lock()
	s := e.invalid[tz]
	e.mu.Unlock()
	if s == nil {
		return
	}
	s.Do(func() {
		e.logger.Warn("unrecognized timezone, formatting in UTC", "timezone", tz)
	})
}

// gmtLabel renders a UTC offset the way browsers label zones that have no
// common abbreviation: "GMT+9", "GMT-3", "GMT+5:30".
func gmtLabel(offset int) string {
	if offset == 0 {
		return "GMT"
	}
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60
	if minutes == 0 {
		return "GMT" + sign + strconv.Itoa(hours)
	}
	return fmt.Sprintf("GMT%s%d:%02d", sign, hours, minutes)
}
