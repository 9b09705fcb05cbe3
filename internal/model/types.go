// Package model defines the canonical data types used throughout timedeck.
// These types are the single source of truth for cities, clock readings,
// conversions, and the result envelope that every command returns.
package model

import (
	"fmt"
	"time"
)

// ─── Cities ───────────────────────────────────────────────────────────────────

// Coordinates is an optional geographic position for a city.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// City is an immutable catalog record. Identity is ID: two cities with the
// same ID are the same tracked entity regardless of the other fields.
type City struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Country     string       `json:"country" yaml:"country"`
	Timezone    string       `json:"timezone" yaml:"timezone"`
	Coordinates *Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
}

// Label returns the "Name, Country" form used by selectors and search.
func (c City) Label() string {
	if c.Country == "" {
		return c.Name
	}
	return c.Name + ", " + c.Country
}

// ─── Day Phase ────────────────────────────────────────────────────────────────

// DayPhase is a coarse classification of the local hour, used for iconography.
type DayPhase string

const (
	PhaseSunrise DayPhase = "sunrise"
	PhaseDay     DayPhase = "day"
	PhaseSunset  DayPhase = "sunset"
	PhaseNight   DayPhase = "night"
)

// Icon returns the fixed emoji for the phase.
func (p DayPhase) Icon() string {
	switch p {
	case PhaseSunrise:
		return "🌅"
	case PhaseDay:
		return "☀️"
	case PhaseSunset:
		return "🌇"
	default:
		return "🌙"
	}
}

// Label returns the fixed display label for the phase.
func (p DayPhase) Label() string {
	switch p {
	case PhaseSunrise:
		return "Sunrise"
	case PhaseDay:
		return "Day"
	case PhaseSunset:
		return "Sunset"
	default:
		return "Night"
	}
}

// ─── Clock Readings ───────────────────────────────────────────────────────────

// ClockReading is the formatted appearance of one timezone at one instant.
// It is never persisted. Readings are compared with == to decide whether a
// refresh changed anything, so every field must stay comparable.
type ClockReading struct {
	Time         string   `json:"time"`
	Date         string   `json:"date"`
	Abbreviation string   `json:"abbreviation"`
	Phase        DayPhase `json:"day_phase"`
	// UTCFallback is set when the timezone was not recognized and the
	// reading was formatted in UTC instead.
	UTCFallback bool `json:"utc_fallback,omitempty"`
}

// ZoneReading pairs a timezone identifier with its reading.
type ZoneReading struct {
	Timezone string       `json:"timezone"`
	Reading  ClockReading `json:"reading"`
}

// CityReading pairs a tracked city with the reading of its timezone.
type CityReading struct {
	City    City         `json:"city"`
	Reading ClockReading `json:"reading"`
}

// ─── Conversion ───────────────────────────────────────────────────────────────

// ParsedTime is a canonical 24-hour wall-clock time with no date or timezone.
type ParsedTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// String renders the time as HH:MM.
func (p ParsedTime) String() string {
	return fmt.Sprintf("%02d:%02d", p.Hour, p.Minute)
}

// ConversionResult is the projection of one canonical time into one target
// city. Offsets are relative to the source timezone, not the host.
type ConversionResult struct {
	City        City     `json:"city"`
	LocalHour   int      `json:"local_hour"`
	LocalMinute int      `json:"local_minute"`
	Time        string   `json:"time"`
	Date        string   `json:"date"`
	Phase       DayPhase `json:"day_phase"`
	HourOffset  int      `json:"hour_offset"`
	DayOffset   int      `json:"day_offset"`
	Relative    string   `json:"relative"`
}

// Conversion bundles a full conversion request with its results.
type Conversion struct {
	Input          string             `json:"input"`
	Parsed         ParsedTime         `json:"parsed"`
	SourceTimezone string             `json:"source_timezone"`
	Results        []ConversionResult `json:"results"`
	Share          string             `json:"share,omitempty"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindCities     = "cities"
	KindReadings   = "readings"
	KindConversion = "conversion"
)
