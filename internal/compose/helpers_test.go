package compose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/loadmix/internal/shedshift"
	"github.com/roach88/loadmix/internal/source"
	"github.com/roach88/loadmix/internal/table"
)

func testSchema() table.Schema {
	return table.Schema{
		TimestampColumn: "weather_datetime",
		SubsectorColumn: "subsector",
		States:          []string{"tx", "ca"},
	}
}

func hour(h int) time.Time {
	return time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(h) * time.Hour)
}

type rowSpec struct {
	sub    string
	h      int
	tx, ca float64
}

func mkTable(t *testing.T, rows ...rowSpec) *table.Table {
	t.Helper()
	tbl := table.MustNew(testSchema())
	for _, r := range rows {
		require.NoError(t, tbl.Append(table.Row{
			Subsector: r.sub,
			Timestamp: hour(r.h),
			Values:    []float64{r.tx, r.ca},
		}))
	}
	return tbl
}

// column returns state's values for subsector's rows in table order.
func column(t *testing.T, tbl *table.Table, state, sub string) []float64 {
	t.Helper()
	col, ok := tbl.StateIndex(state)
	require.True(t, ok, "state %s", state)
	var out []float64
	for _, r := range tbl.Rows {
		if r.Subsector == sub {
			out = append(out, r.Values[col])
		}
	}
	return out
}

func newEngine(src source.Source, shed *shedshift.Config, opts Options) *Engine {
	if opts.RunIDs == nil {
		opts.RunIDs = NewFixedGenerator("run-1")
	}
	return New(src, shed, opts)
}

// standardSource registers a baseline and two alternative scenarios with
// identical row layout.
func standardSource(t *testing.T) *source.Memory {
	t.Helper()
	src := source.NewMemory()
	src.Put(2030, "baseline", mkTable(t,
		rowSpec{"trucking", 0, 10, 100},
		rowSpec{"trucking", 1, 11, 101},
		rowSpec{"bus", 0, 20, 200},
		rowSpec{"bus", 1, 21, 201},
	))
	src.Put(2030, "high_growth", mkTable(t,
		rowSpec{"trucking", 0, 30, 300},
		rowSpec{"trucking", 1, 31, 301},
		rowSpec{"bus", 0, 40, 400},
		rowSpec{"bus", 1, 41, 401},
	))
	src.Put(2030, "electrified", mkTable(t,
		rowSpec{"trucking", 0, 50, 500},
		rowSpec{"trucking", 1, 51, 501},
		rowSpec{"bus", 0, 60, 600},
		rowSpec{"bus", 1, 61, 601},
	))
	return src
}
