package compose

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/table"
)

// NeutralFactor is the scaling factor treated as "no change". Entries with
// this factor are skipped without touching the table.
const NeutralFactor = 1.0

// scale multiplies composed values by the request's custom scaling factors.
// It runs after the resolver, so it scales whichever scenario supplied a
// value. Baseline-only subsectors are never scaled. Row count and row types
// are unchanged.
func scale(composed *table.Table, req *request.CompositionRequest, logger *slog.Logger) request.Diagnostics {
	var diags request.Diagnostics

	for _, s := range req.SortedScaling() {
		key, f := s.Key, s.Factor
		if req.IsBaselineOnly(key.Subsector) {
			logger.Debug("scaling skipped: baseline-only subsector", "key", key.String())
			continue
		}
		if f == NeutralFactor {
			continue
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			diags.Add(request.Diagnostic{
				Code:      request.DiagInvalidFactor,
				Message:   fmt.Sprintf("scaling factor %v is not a finite non-negative number", f),
				State:     key.State,
				Subsector: key.Subsector,
			})
			continue
		}

		if key.AllStates() {
			n := 0
			for i := range composed.Rows {
				r := &composed.Rows[i]
				if r.Subsector != key.Subsector {
					continue
				}
				for j := range r.Values {
					r.Values[j] *= f
				}
				n++
			}
			logger.Debug("scaled all states", "subsector", key.Subsector, "factor", f, "rows", n)
			continue
		}

		col, ok := composed.StateIndex(key.State)
		if !ok {
			logger.Debug("scaling skipped: state column absent", "key", key.String())
			continue
		}
		n := 0
		for i := range composed.Rows {
			if composed.Rows[i].Subsector == key.Subsector {
				composed.Rows[i].Values[col] *= f
				n++
			}
		}
		logger.Debug("scaled state", "state", key.State, "subsector", key.Subsector, "factor", f, "rows", n)
	}

	return diags
}
