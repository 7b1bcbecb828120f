// Package loader reads water-quality sample CSVs into observations for
// trend analysis. Column names are matched against a list of common
// candidates so exports from different agency systems load without
// reshaping.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/watershedtools/mdc/internal/trend"
)

// Options holds options for CSV loading.
type Options struct {
	StationColumn string // Column name for station IDs (optional)
	DateColumn    string // Column name for sample dates (optional)
	ValueColumn   string // Column name for concentrations (optional)
	DateFormat    string // Preferred date format, tried first (optional)
	Delimiter     rune   // Field delimiter (default: ',')
}

// DefaultOptions returns default options for CSV loading.
func DefaultOptions() *Options {
	return &Options{
		Delimiter: ',',
	}
}

// Candidate header names, matched case-insensitively when the
// corresponding Options field is empty.
var (
	stationCandidates = []string{"station_id", "station", "site_id", "site", "monitoring_location"}
	dateCandidates    = []string{"sampled_at", "sample_date", "date", "datetime", "timestamp"}
	valueCandidates   = []string{"concentration", "result", "value", "measurement"}
)

// Date formats tried in order after Options.DateFormat.
var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006/01/02",
}

// LoadCSV loads observations from a CSV file.
func LoadCSV(filename string, opts *Options) ([]trend.Observation, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

// LoadCSVFromReader loads observations from an io.Reader. The first
// record is treated as a header row. Rows with an empty or NA value
// cell are skipped; any other cell that fails to parse is an error
// carrying the file row number.
func LoadCSVFromReader(r io.Reader, opts *Options) ([]trend.Observation, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	stationIdx := findColumn(header, opts.StationColumn, stationCandidates)
	dateIdx := findColumn(header, opts.DateColumn, dateCandidates)
	valueIdx := findColumn(header, opts.ValueColumn, valueCandidates)

	if stationIdx < 0 {
		return nil, fmt.Errorf("no station column found in header %v", header)
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("no date column found in header %v", header)
	}
	if valueIdx < 0 {
		return nil, fmt.Errorf("no concentration column found in header %v", header)
	}

	var observations []trend.Observation
	row := 1 // header was row 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		row++

		station := clean(record[stationIdx])
		if station == "" {
			return nil, fmt.Errorf("row %d: empty station ID", row)
		}

		valStr := clean(record[valueIdx])
		if valStr == "" || strings.EqualFold(valStr, "NA") || strings.EqualFold(valStr, "NaN") || strings.EqualFold(valStr, "null") {
			continue
		}
		value, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid concentration %q", row, valStr)
		}

		dateStr := clean(record[dateIdx])
		timestamp, err := parseDate(dateStr, opts.DateFormat)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date %q", row, dateStr)
		}

		observations = append(observations, trend.Observation{
			StationID:     station,
			Timestamp:     timestamp,
			Concentration: value,
		})
	}

	return observations, nil
}

// findColumn returns the index of the named column, or of the first
// candidate present when name is empty. Returns -1 when nothing matches.
func findColumn(header []string, name string, candidates []string) int {
	if name != "" {
		for i, h := range header {
			if strings.EqualFold(clean(h), name) {
				return i
			}
		}
		return -1
	}
	for _, cand := range candidates {
		for i, h := range header {
			if strings.EqualFold(clean(h), cand) {
				return i
			}
		}
	}
	return -1
}

func parseDate(s, preferred string) (time.Time, error) {
	if preferred != "" {
		if ts, err := time.Parse(preferred, s); err == nil {
			return ts, nil
		}
	}
	var err error
	for _, format := range dateFormats {
		var ts time.Time
		ts, err = time.Parse(format, s)
		if err == nil {
			return ts, nil
		}
	}
	return time.Time{}, err
}

func clean(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "\""))
}
