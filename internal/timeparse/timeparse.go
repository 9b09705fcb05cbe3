// Package timeparse converts free-form time phrases such as "3pm", "15:30"
// or "noon" into a canonical 24-hour hour and minute.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/derickschaefer/timedeck/internal/model"
)

// Hint is the user-facing suggestion shown when a phrase cannot be parsed.
const Hint = `Try "3 PM", "15:30", or "noon"`

// ParseError reports a phrase that matched none of the accepted formats.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid time %q", e.Input)
	}
	return fmt.Sprintf("invalid time %q: %s", e.Input, e.Reason)
}

// Hint returns the accepted-formats suggestion.
func (e *ParseError) Hint() string { return Hint }

var phrasePattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)

// Parse converts input to a ParsedTime. Rules apply in order, first match wins:
//
//  1. trim and lowercase
//  2. "noon" and "12 pm" are 12:00; "midnight" and "12 am" are 00:00
//  3. hours[:minutes][ am|pm], hours 1-2 digits, minutes exactly 2 digits;
//     hours > 23 or minutes > 59 are rejected
//  4. with am/pm, hours must be 1-12; pm adds 12 unless 12, am maps 12 to 0
//  5. without am/pm, hours 1-7 are read as afternoon (3 means 15:00) and
//     everything else is taken as already 24-hour
//
// Rule 5 is a guess carried over for compatibility: "9" is 9 AM while "3" is
// 3 PM.
func Parse(input string) (model.ParsedTime, error) {
	clean := strings.ToLower(strings.TrimSpace(input))

	switch clean {
	case "noon", "12 pm":
		return model.ParsedTime{Hour: 12, Minute: 0}, nil
	case "midnight", "12 am":
		return model.ParsedTime{Hour: 0, Minute: 0}, nil
	}

	m := phrasePattern.FindStringSubmatch(clean)
	if m == nil {
		return model.ParsedTime{}, &ParseError{Input: input}
	}

	hours, _ := strconv.Atoi(m[1])
	minutes := 0
	if m[2] != "" {
		minutes, _ = strconv.Atoi(m[2])
	}
	period := m[3]

	if hours > 23 {
		return model.ParsedTime{}, &ParseError{Input: input, Reason: "hour out of range"}
	}
	if minutes > 59 {
		return model.ParsedTime{}, &ParseError{Input: input, Reason: "minute out of range"}
	}
	if period != "" && (hours > 12 || hours == 0) {
		return model.ParsedTime{}, &ParseError{Input: input, Reason: "12-hour times run from 1 to 12"}
	}

	switch {
	case period == "pm" && hours != 12:
		hours += 12
	case period == "am" && hours == 12:
		hours = 0
	case period == "" && hours >= 1 && hours <= 7:
		hours += 12
	}

	return model.ParsedTime{Hour: hours, Minute: minutes}, nil
}
