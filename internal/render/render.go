// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/timedeck/internal/model"
	"github.com/olekukonko/tablewriter"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Formats lists every accepted --format value.
var Formats = []string{FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatMD}

// ValidFormat reports whether f is one of Formats.
func ValidFormat(f string) bool {
	for _, v := range Formats {
		if v == f {
			return true
		}
	}
	return false
}

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

// renderJSONL writes one record per line: a city, a reading, or a
// conversion result.
func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch data := result.Data.(type) {
	case []model.City:
		for _, c := range data {
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
		return nil
	case []model.CityReading:
		for _, r := range data {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	case *model.Conversion:
		for _, r := range data.Results {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(result.Data)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindCities:
		cities, ok := result.Data.([]model.City)
		if !ok {
			return fmt.Errorf("unexpected data type for cities")
		}
		return renderCitiesTable(w, cities)
	case model.KindReadings:
		readings, ok := result.Data.([]model.CityReading)
		if !ok {
			return fmt.Errorf("unexpected data type for readings")
		}
		return renderReadingsTable(w, readings)
	case model.KindConversion:
		conv, ok := result.Data.(*model.Conversion)
		if !ok {
			return fmt.Errorf("unexpected data type for conversion")
		}
		return renderConversionTable(w, conv)
	default:
		// Fallback: JSON
		return renderJSON(w, result)
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	return tw
}

func renderCitiesTable(w io.Writer, cities []model.City) error {
	if len(cities) == 0 {
		fmt.Fprintln(w, "No cities.")
		return nil
	}
	tw := newTable(w, []string{"#", "ID", "CITY", "COUNTRY", "TIMEZONE"})
	for i, c := range cities {
		tw.Append([]string{strconv.Itoa(i + 1), c.ID, c.Name, c.Country, c.Timezone})
	}
	tw.Render()
	return nil
}

func renderReadingsTable(w io.Writer, readings []model.CityReading) error {
	if len(readings) == 0 {
		fmt.Fprintln(w, "No cities tracked. Add one with: timedeck cities add <id>")
		return nil
	}
	tw := newTable(w, []string{"CITY", "TIME", "DATE", "ZONE", "PHASE"})
	for _, r := range readings {
		tw.Append(readingRow(r))
	}
	tw.Render()
	return nil
}

func readingRow(r model.CityReading) []string {
	zone := r.Reading.Abbreviation
	if r.Reading.UTCFallback {
		zone += " (UTC fallback)"
	}
	return []string{
		r.City.Label(),
		r.Reading.Time,
		r.Reading.Date,
		zone,
		r.Reading.Phase.Icon() + " " + r.Reading.Phase.Label(),
	}
}

func renderConversionTable(w io.Writer, conv *model.Conversion) error {
	fmt.Fprintf(w, "%s in %s (%s)\n\n", conv.Input, conv.SourceTimezone, conv.Parsed)
	if len(conv.Results) == 0 {
		fmt.Fprintln(w, "No cities tracked.")
		return nil
	}
	tw := newTable(w, []string{"CITY", "TIME", "DATE", "", "DIFFERENCE"})
	for _, r := range conv.Results {
		tw.Append([]string{r.City.Label(), r.Time, r.Date, r.Phase.Icon(), r.Relative})
	}
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	switch data := result.Data.(type) {
	case []model.City:
		_ = cw.Write([]string{"id", "name", "country", "timezone", "lat", "lng"})
		for _, c := range data {
			lat, lng := "", ""
			if c.Coordinates != nil {
				lat = strconv.FormatFloat(c.Coordinates.Lat, 'f', -1, 64)
				lng = strconv.FormatFloat(c.Coordinates.Lng, 'f', -1, 64)
			}
			_ = cw.Write([]string{c.ID, c.Name, c.Country, c.Timezone, lat, lng})
		}
	case []model.CityReading:
		_ = cw.Write([]string{"id", "name", "timezone", "time", "date", "abbreviation", "day_phase", "utc_fallback"})
		for _, r := range data {
			_ = cw.Write([]string{
				r.City.ID, r.City.Name, r.City.Timezone,
				r.Reading.Time, r.Reading.Date, r.Reading.Abbreviation,
				string(r.Reading.Phase), strconv.FormatBool(r.Reading.UTCFallback),
			})
		}
	case *model.Conversion:
		_ = cw.Write([]string{"id", "name", "timezone", "local_time", "time", "date", "day_phase", "hour_offset", "day_offset", "relative"})
		for _, r := range data.Results {
			_ = cw.Write([]string{
				r.City.ID, r.City.Name, r.City.Timezone,
				fmt.Sprintf("%02d:%02d", r.LocalHour, r.LocalMinute),
				r.Time, r.Date, string(r.Phase),
				strconv.Itoa(r.HourOffset), strconv.Itoa(r.DayOffset), r.Relative,
			})
		}
	default:
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	switch data := result.Data.(type) {
	case []model.City:
		fmt.Fprintf(w, "| # | ID | CITY | COUNTRY | TIMEZONE |\n|---|----|------|---------|----------|\n")
		for i, c := range data {
			fmt.Fprintf(w, "| %d | %s | %s | %s | %s |\n",
				i+1, c.ID, mdEscape(c.Name), mdEscape(c.Country), c.Timezone)
		}
		return nil
	case []model.CityReading:
		fmt.Fprintf(w, "| CITY | TIME | DATE | ZONE | PHASE |\n|------|------|------|------|-------|\n")
		for _, r := range data {
			row := readingRow(r)
			for i := range row {
				row[i] = mdEscape(row[i])
			}
			fmt.Fprintf(w, "| %s |\n", strings.Join(row, " | "))
		}
		return nil
	case *model.Conversion:
		fmt.Fprintf(w, "**%s** in %s\n\n", mdEscape(data.Input), data.SourceTimezone)
		fmt.Fprintf(w, "| CITY | TIME | DATE | | DIFFERENCE |\n|------|------|------|---|------------|\n")
		for _, r := range data.Results {
			fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
				mdEscape(r.City.Label()), r.Time, r.Date, r.Phase.Icon(), r.Relative)
		}
		return nil
	default:
		return renderJSON(w, result)
	}
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings, and stats when verbose mode is on, to w.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
