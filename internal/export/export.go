// Package export writes composed tables as CSV.
//
// Column order is fixed: timestamp column, subsector column, attribute
// columns, state columns, then the derived row_type and weather_year
// columns. Numbers use the shortest decimal form that round-trips.
package export

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/loadmix/internal/source"
	"github.com/roach88/loadmix/internal/table"
)

// Header returns the exported column names of t in output order.
func Header(t *table.Table) []string {
	s := t.Schema()
	out := make([]string, 0, 4+len(s.Attributes)+len(s.States))
	out = append(out, s.TimestampColumn, s.SubsectorColumn)
	out = append(out, s.Attributes...)
	out = append(out, s.States...)
	out = append(out, table.ColumnRowType, table.ColumnWeatherYear)
	return out
}

// WriteCSV writes t with a header row.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(t)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, 0, len(Header(t)))
	for i, r := range t.Rows {
		record = record[:0]
		record = append(record, r.Timestamp.UTC().Format(source.TimestampLayout), r.Subsector)
		record = append(record, r.Attrs...)
		for _, v := range r.Values {
			record = append(record, FormatValue(v))
		}
		typ := r.Type
		if typ == "" {
			typ = table.RowOriginal
		}
		record = append(record, string(typ), strconv.Itoa(r.WeatherYear()))
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatValue renders v in the shortest form that parses back to v.
// Negative zero is written as 0.
func FormatValue(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteFile writes t to path, gzip-compressed when path ends in ".gz".
func WriteFile(path string, t *table.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return WriteCSV(f, t)
	}
	gz := gzip.NewWriter(f)
	if err := WriteCSV(gz, t); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}
