package panel

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// CSVOptions holds options for reading long-format tables.
type CSVOptions struct {
	IDColumn   string   // Entity column (default: "unique_id")
	TimeColumn string   // Timestamp column (default: "ds")
	TimeFormat string   // Preferred timestamp layout (default: "2006-01-02")
	Columns    []string // Value columns to keep (default: all other columns)
	Static     bool     // Table has no timestamp column
	Delimiter  rune     // Field delimiter (default: ',')
}

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		IDColumn:   IDColumn,
		TimeColumn: TimeColumn,
		TimeFormat: "2006-01-02",
		Delimiter:  ',',
	}
}

// LoadCSV reads a table from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) (*Table, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	t, err := ReadCSV(file, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return t, nil
}

// ReadCSV reads a table with a header row from r. Empty, NA, NaN and null
// cells become NaN.
func ReadCSV(r io.Reader, opts *CSVOptions) (*Table, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}
	idCol := opts.IDColumn
	if idCol == "" {
		idCol = IDColumn
	}
	timeCol := opts.TimeColumn
	if timeCol == "" {
		timeCol = TimeColumn
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}

	idIdx, timeIdx := -1, -1
	var valueIdx []int
	var names []string
	keep := make(map[string]bool)
	for _, c := range opts.Columns {
		keep[c] = true
	}
	for i, h := range header {
		h = strings.TrimSpace(strings.Trim(h, "\""))
		switch {
		case h == idCol:
			idIdx = i
		case !opts.Static && h == timeCol:
			timeIdx = i
		case len(keep) == 0 || keep[h]:
			valueIdx = append(valueIdx, i)
			names = append(names, h)
		}
	}
	if idIdx == -1 {
		return nil, errors.Wrapf(ErrSchema, "csv is missing column %q", idCol)
	}
	if !opts.Static && timeIdx == -1 {
		return nil, errors.Wrapf(ErrSchema, "csv is missing column %q", timeCol)
	}
	if len(keep) > 0 && len(names) != len(keep) {
		var missing []string
		found := make(map[string]bool)
		for _, n := range names {
			found[n] = true
		}
		for _, c := range opts.Columns {
			if !found[c] {
				missing = append(missing, c)
			}
		}
		return nil, errors.Wrapf(ErrSchema, "csv is missing columns %s", strings.Join(missing, ", "))
	}

	t := &Table{}
	if !opts.Static {
		t.Times = []time.Time{}
	}
	values := make([][]float64, len(valueIdx))

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		t.IDs = append(t.IDs, strings.TrimSpace(strings.Trim(record[idIdx], "\"")))
		if !opts.Static {
			ts, err := parseTime(strings.TrimSpace(strings.Trim(record[timeIdx], "\"")), opts.TimeFormat)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			t.Times = append(t.Times, ts)
		}
		for j, idx := range valueIdx {
			v, err := parseValue(strings.TrimSpace(strings.Trim(record[idx], "\"")))
			if err != nil {
				return nil, errors.Wrapf(err, "line %d column %q", line, names[j])
			}
			values[j] = append(values[j], v)
		}
	}

	for j, name := range names {
		t.With(name, values[j])
	}
	return t, nil
}

func parseValue(s string) (float64, error) {
	switch s {
	case "", "NA", "NaN", "nan", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseTime(s, layout string) (time.Time, error) {
	formats := []string{
		layout,
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
		"2006",
	}
	for _, f := range formats {
		if f == "" {
			continue
		}
		if ts, err := time.Parse(f, s); err == nil {
			return ts, nil
		}
	}
	// Integer timestamps are read as steps from the Unix epoch in seconds.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, errors.Errorf("unrecognised timestamp %q", s)
}
