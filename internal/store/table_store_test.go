package store

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/loadmix/internal/source"
	"github.com/roach88/loadmix/internal/table"
)

// Compile-time check that Store serves scenario tables.
var _ source.Source = (*Store)(nil)

func TestImportTable_LoadRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	tbl := createTestTable(t, 2030, "baseline")

	if err := s.ImportTable(ctx, tbl, "files/2030_baseline.csv.gz"); err != nil {
		t.Fatalf("ImportTable() failed: %v", err)
	}

	got, err := s.Load(ctx, 2030, "baseline")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if diff := cmp.Diff(tbl.Rows, got.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tbl.Schema(), got.Schema()); diff != "" {
		t.Errorf("schema mismatch (-want +got):\n%s", diff)
	}
	if got.Year != 2030 || got.Scenario != "baseline" {
		t.Errorf("got key (%d, %q), want (2030, \"baseline\")", got.Year, got.Scenario)
	}
}

func TestImportTable_ExactFloats(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tbl := table.MustNew(table.Schema{
		TimestampColumn: "weather_datetime",
		SubsectorColumn: "subsector",
		States:          []string{"tx", "ca", "ny"},
	})
	tbl.Year, tbl.Scenario = 2030, "edge"
	a, b := 0.1, 0.2
	vals := []float64{a + b, math.Copysign(0, -1), math.MaxFloat64}
	if err := tbl.Append(table.Row{Subsector: "x", Timestamp: time.Date(2012, 7, 1, 17, 0, 0, 0, time.UTC), Values: vals}); err != nil {
		t.Fatal(err)
	}
	if err := s.ImportTable(ctx, tbl, ""); err != nil {
		t.Fatalf("ImportTable() failed: %v", err)
	}

	got, err := s.Load(ctx, 2030, "edge")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	for i, v := range vals {
		if math.Float64bits(got.Rows[0].Values[i]) != math.Float64bits(v) {
			t.Errorf("value %d = %v, want %v", i, got.Rows[0].Values[i], v)
		}
	}
}

func TestImportTable_ReplacesPrevious(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestTable(t, 2030, "baseline")
	if err := s.ImportTable(ctx, first, "old.csv"); err != nil {
		t.Fatalf("first ImportTable() failed: %v", err)
	}

	second := createTestTable(t, 2030, "baseline")
	second.Rows = second.Rows[:1]
	if err := s.ImportTable(ctx, second, "new.csv"); err != nil {
		t.Fatalf("second ImportTable() failed: %v", err)
	}

	got, err := s.Load(ctx, 2030, "baseline")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.Len() != 1 {
		t.Errorf("got %d rows after re-import, want 1", got.Len())
	}

	var orphans int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM scenario_rows`).Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 1 {
		t.Errorf("scenario_rows holds %d rows, want 1", orphans)
	}
}

func TestImportTable_RequiresKey(t *testing.T) {
	s := createTestStore(t)
	tbl := createTestTable(t, 0, "")
	if err := s.ImportTable(context.Background(), tbl, ""); err == nil {
		t.Error("expected error for table without year and scenario")
	}
}

func TestLoad_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Load(context.Background(), 2030, "missing")
	if !source.IsNotFound(err) {
		t.Errorf("Load() error = %v, want not found", err)
	}
}

func TestListTables_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, k := range []struct {
		year     int
		scenario string
	}{{2040, "baseline"}, {2030, "high_growth"}, {2030, "baseline"}} {
		if err := s.ImportTable(ctx, createTestTable(t, k.year, k.scenario), ""); err != nil {
			t.Fatal(err)
		}
	}

	infos, err := s.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables() failed: %v", err)
	}
	var got []string
	for _, info := range infos {
		got = append(got, info.Scenario)
		if info.Rows != 3 {
			t.Errorf("%d/%s has %d rows, want 3", info.Year, info.Scenario, info.Rows)
		}
	}
	want := []string{"baseline", "high_growth", "baseline"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tx", "ca"}, infos[0].States); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}
