package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/loadmix/internal/table"
)

// Options describes how CSV columns map onto a table schema.
type Options struct {
	TimestampColumn  string
	SubsectorColumn  string
	AttributeColumns []string
}

// DefaultOptions matches the demand model's export layout.
func DefaultOptions() Options {
	return Options{
		TimestampColumn: "weather_datetime",
		SubsectorColumn: "subsector",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TimestampColumn == "" {
		o.TimestampColumn = d.TimestampColumn
	}
	if o.SubsectorColumn == "" {
		o.SubsectorColumn = d.SubsectorColumn
	}
	return o
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

// TimestampLayout is the layout used when timestamps are written back out.
const TimestampLayout = "2006-01-02 15:04:05"

// ParseTimestamp parses the timestamp formats found in scenario files.
// Values without a zone are read as UTC; values with an offset are
// converted to UTC, so weather years and exported timestamps agree.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ReadCSV parses a scenario table.
//
// The header must contain the timestamp and subsector columns. Columns named
// in opts.AttributeColumns are kept as text; derived columns (row_type,
// weather_year) are skipped; every other column is a state column and must
// hold numbers. Empty numeric cells read as zero.
func ReadCSV(r io.Reader, opts Options) (*table.Table, error) {
	opts = opts.withDefaults()

	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty CSV: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	// ReuseRecord shares the backing array with later rows.
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	attrSet := make(map[string]bool, len(opts.AttributeColumns))
	for _, a := range opts.AttributeColumns {
		attrSet[table.NormalizeState(a)] = true
	}

	tsCol, subCol := -1, -1
	var attrCols, stateCols []int
	schema := table.Schema{
		TimestampColumn: opts.TimestampColumn,
		SubsectorColumn: opts.SubsectorColumn,
	}
	for i, name := range header {
		n := table.NormalizeState(name)
		switch {
		case n == table.NormalizeState(opts.TimestampColumn):
			tsCol = i
		case n == table.NormalizeState(opts.SubsectorColumn):
			subCol = i
		case table.IsDerivedColumn(n):
			// recomputed on export
		case attrSet[n]:
			attrCols = append(attrCols, i)
			schema.Attributes = append(schema.Attributes, table.NormalizeName(name))
		default:
			stateCols = append(stateCols, i)
			schema.States = append(schema.States, name)
		}
	}
	if tsCol < 0 {
		return nil, fmt.Errorf("%q column is missing", opts.TimestampColumn)
	}
	if subCol < 0 {
		return nil, fmt.Errorf("%q column is missing", opts.SubsectorColumn)
	}

	tbl, err := table.New(schema)
	if err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := ParseTimestamp(rec[tsCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, opts.TimestampColumn, err)
		}

		row := table.Row{
			Subsector: table.NormalizeName(rec[subCol]),
			Timestamp: ts,
			Attrs:     make([]string, len(attrCols)),
			Values:    make([]float64, len(stateCols)),
			Type:      table.RowOriginal,
		}
		for j, c := range attrCols {
			row.Attrs[j] = rec[c]
		}
		for j, c := range stateCols {
			cell := strings.TrimSpace(rec[c])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %q is not numeric (declare it as an attribute column if it is an identifier): %w",
					line, header[c], err)
			}
			row.Values[j] = v
		}
		tbl.Rows = append(tbl.Rows, row)
	}

	return tbl, nil
}
