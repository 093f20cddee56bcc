package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/loadmix/internal/table"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestTable creates a small table with one attribute and two states.
func createTestTable(t *testing.T, year int, scenario string) *table.Table {
	t.Helper()
	tbl := table.MustNew(table.Schema{
		TimestampColumn: "weather_datetime",
		SubsectorColumn: "subsector",
		Attributes:      []string{"sector"},
		States:          []string{"tx", "ca"},
	})
	tbl.Year = year
	tbl.Scenario = scenario
	base := time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []table.Row{
		{Subsector: "trucking", Timestamp: base, Attrs: []string{"transport"}, Values: []float64{10, 100}},
		{Subsector: "trucking", Timestamp: base.Add(time.Hour), Attrs: []string{"transport"}, Values: []float64{11.5, 0.1}},
		{Subsector: "heating", Timestamp: base, Attrs: []string{""}, Values: []float64{-0.25, 3e-9}},
	}
	for _, r := range rows {
		if err := tbl.Append(r); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}
	return tbl
}
