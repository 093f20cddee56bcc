package compose

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/shedshift"
	"github.com/roach88/loadmix/internal/table"
)

// DefaultPeakRows is the number of peak rows selected per state.
const DefaultPeakRows = 250

// decomposer splits each enabled state's peak rows into static, shed and
// shift rows.
type decomposer struct {
	cfg      *shedshift.Config
	peakRows int
	logger   *slog.Logger
}

// decomposeStats summarizes one decomposer run.
type decomposeStats struct {
	Selected map[string]int
	Split    int
}

// apply rewrites composed in place.
//
// States are processed in order. For each state the peakRows highest values
// of that state's column are taken from the rows not yet selected by an
// earlier state; ties keep table order. Selected rows whose (state,
// subsector) has non-zero fractions become three rows; the rest are
// re-inserted unchanged. The final table is the never-selected rows in their
// original order followed by the processed rows.
func (d *decomposer) apply(composed *table.Table, states []string) (decomposeStats, request.Diagnostics) {
	stats := decomposeStats{Selected: map[string]int{}}
	var diags request.Diagnostics

	pool := composed.Rows
	var processed []table.Row

	for _, state := range states {
		if table.IsAllStates(state) {
			continue
		}
		if !d.cfg.HasState(state) {
			d.logger.Debug("shed/shift skipped: state not configured", "state", state)
			continue
		}
		col, ok := composed.StateIndex(state)
		if !ok {
			d.logger.Debug("shed/shift skipped: state column absent", "state", state)
			continue
		}

		selected, rest := selectPeaks(pool, col, d.peakRows)
		pool = rest
		stats.Selected[state] = len(selected)

		clamped := map[string]int{}
		for _, r := range selected {
			f, ok := d.cfg.Lookup(state, r.Subsector)
			if !ok || f.IsZero() {
				r.Type = table.RowOriginal
				processed = append(processed, r)
				continue
			}
			parts, nClamped := split(r, col, f)
			processed = append(processed, parts...)
			stats.Split++
			if nClamped > 0 {
				clamped[r.Subsector] += nClamped
			}
		}

		for _, sub := range sortedKeys(clamped) {
			diags.Add(request.Diagnostic{
				Code:      request.DiagClampedValue,
				Message:   fmt.Sprintf("%d shed/shift values clamped to zero; totals not conserved", clamped[sub]),
				State:     state,
				Subsector: sub,
			})
		}
		d.logger.Debug("shed/shift applied", "state", state, "selected", len(selected))
	}

	out := make([]table.Row, 0, len(pool)+len(processed))
	out = append(out, pool...)
	out = append(out, processed...)
	composed.Rows = out
	return stats, diags
}

// selectPeaks returns the n rows with the largest values in column col, in
// table order, and the remaining rows in table order. Equal values keep
// their relative order, so the earlier row wins the last slot.
func selectPeaks(rows []table.Row, col, n int) (selected, rest []table.Row) {
	if n > len(rows) {
		n = len(rows)
	}
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rows[order[a]].Values[col] > rows[order[b]].Values[col]
	})

	picked := make([]bool, len(rows))
	for _, i := range order[:n] {
		picked[i] = true
	}

	selected = make([]table.Row, 0, n)
	rest = make([]table.Row, 0, len(rows)-n)
	for i, r := range rows {
		if picked[i] {
			selected = append(selected, r)
		} else {
			rest = append(rest, r)
		}
	}
	return selected, rest
}

// split returns the static, shed and shift copies of r. Only column col and
// the row type differ between the copies. Negative results are clamped to
// zero and counted.
func split(r table.Row, col int, f shedshift.Fractions) ([]table.Row, int) {
	v := r.Values[col]
	values := [3]float64{
		(1 - f.Shed - f.Shift) * v,
		f.Shed * v,
		f.Shift * v,
	}
	types := [3]table.RowType{table.RowStatic, table.RowShed, table.RowShift}

	clamped := 0
	out := make([]table.Row, 3)
	for i := range out {
		if values[i] < 0 {
			clamped++
		}
		if values[i] <= 0 {
			// also normalizes -0
			values[i] = 0
		}
		out[i] = r.Clone()
		out[i].Values[col] = values[i]
		out[i].Type = types[i]
	}
	return out, clamped
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
