package compose

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/table"
)

// Alignment selects how a single-state fallback lines up fallback rows with
// composed rows.
type Alignment string

const (
	// AlignPositional pairs the i-th composed row of a subsector with the
	// i-th fallback row of that subsector. Row counts must match.
	AlignPositional Alignment = "positional"

	// AlignKeyed pairs rows by (subsector, timestamp), like state base
	// overrides. Unmatched rows keep their value.
	AlignKeyed Alignment = "keyed"
)

// ParseAlignment validates an alignment name. The empty string selects
// AlignPositional.
func ParseAlignment(s string) (Alignment, error) {
	switch Alignment(s) {
	case "", AlignPositional:
		return AlignPositional, nil
	case AlignKeyed:
		return AlignKeyed, nil
	}
	return "", fmt.Errorf("unknown fallback alignment %q (want %q or %q)", s, AlignPositional, AlignKeyed)
}

// resolver applies the scenario layers of one request to a composed table.
type resolver struct {
	req       *request.CompositionRequest
	cache     *tableCache
	baseline  string
	alignment Alignment
	logger    *slog.Logger
}

// resolve builds the composed table. Layers run in precedence order and each
// later layer overwrites what the earlier ones produced:
//
//  1. global scenario, deep copied
//  2. state base scenarios, matched by (subsector, timestamp)
//  3. subsector fallbacks, all-states entries first
//  4. baseline-only subsectors, replaced from the baseline scenario
func (rs *resolver) resolve(ctx context.Context) (*table.Table, error) {
	global, err := rs.cache.get(ctx, rs.req.GlobalScenario)
	if err != nil {
		return nil, err
	}
	composed := global.Clone()
	rs.logger.Debug("global base loaded", "scenario", rs.req.GlobalScenario, "rows", composed.Len())

	if err := rs.applyStateBases(ctx, composed); err != nil {
		return nil, err
	}
	if err := rs.applyFallbacks(ctx, composed); err != nil {
		return nil, err
	}
	if err := rs.applyBaselineOnly(ctx, composed); err != nil {
		return nil, err
	}
	return composed, nil
}

func (rs *resolver) applyStateBases(ctx context.Context, composed *table.Table) error {
	for _, sb := range rs.req.SortedStateBases() {
		if sb.Scenario == rs.req.GlobalScenario {
			continue
		}
		src, err := rs.cache.get(ctx, sb.Scenario)
		if err != nil {
			return err
		}
		matched, ok := copyColumnByKey(composed, src, sb.State, nil)
		if !ok {
			rs.logger.Debug("state base skipped: state column absent", "state", sb.State, "scenario", sb.Scenario)
			continue
		}
		rs.logger.Debug("state base applied", "state", sb.State, "scenario", sb.Scenario,
			"matched", matched, "unmatched", composed.Len()-matched)
	}
	return nil
}

func (rs *resolver) applyFallbacks(ctx context.Context, composed *table.Table) error {
	for _, fb := range rs.req.SortedFallbacks() {
		sub := fb.Key.Subsector
		if rs.req.IsBaselineOnly(sub) {
			rs.logger.Debug("fallback skipped: baseline-only subsector", "key", fb.Key.String())
			continue
		}
		if fb.Scenario == rs.req.EffectiveBase(fb.Key.State) {
			continue
		}
		src, err := rs.cache.get(ctx, fb.Scenario)
		if err != nil {
			return err
		}

		if fb.Key.AllStates() {
			removed, added := replaceSubsector(composed, src, sub)
			rs.logger.Debug("fallback rows replaced", "subsector", sub, "scenario", fb.Scenario,
				"removed", removed, "added", added)
			continue
		}

		switch rs.alignment {
		case AlignKeyed:
			inSub := func(r table.Row) bool { return r.Subsector == sub }
			if _, ok := copyColumnByKey(composed, src, fb.Key.State, inSub); !ok {
				rs.logger.Debug("fallback skipped: state column absent", "key", fb.Key.String())
			}
		default:
			ok, err := copyColumnPositional(composed, src, fb.Key.State, sub)
			if err != nil {
				err.Scenario = fb.Scenario
				return err
			}
			if !ok {
				rs.logger.Debug("fallback skipped: state column absent", "key", fb.Key.String())
			}
		}
	}
	return nil
}

func (rs *resolver) applyBaselineOnly(ctx context.Context, composed *table.Table) error {
	subs := rs.req.SortedBaselineOnly()
	if len(subs) == 0 {
		return nil
	}
	base, err := rs.cache.get(ctx, rs.baseline)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		removed, added := replaceSubsector(composed, base, sub)
		rs.logger.Debug("baseline-only subsector restored", "subsector", sub,
			"removed", removed, "added", added)
	}
	return nil
}

// copyColumnByKey copies state's column from src into dst for every dst row
// accepted by filter (nil accepts all), matching rows by (subsector,
// timestamp). The k-th occurrence of a key in dst takes the value of the k-th
// occurrence in src. Rows without a partner keep their value.
//
// It returns the number of rows updated, and false if either table lacks
// the state column.
func copyColumnByKey(dst, src *table.Table, state string, filter func(table.Row) bool) (int, bool) {
	di, ok := dst.StateIndex(state)
	if !ok {
		return 0, false
	}
	si, ok := src.StateIndex(state)
	if !ok {
		return 0, false
	}

	positions := make(map[table.Key][]int)
	for i, r := range src.Rows {
		if filter == nil || filter(r) {
			k := r.Key()
			positions[k] = append(positions[k], i)
		}
	}

	seen := make(map[table.Key]int)
	matched := 0
	for i := range dst.Rows {
		r := &dst.Rows[i]
		if filter != nil && !filter(*r) {
			continue
		}
		k := r.Key()
		n := seen[k]
		seen[k] = n + 1
		if list := positions[k]; n < len(list) {
			r.Values[di] = src.Rows[list[n]].Values[si]
			matched++
		}
	}
	return matched, true
}

// copyColumnPositional copies state's column for subsector from src into dst
// by row position within the subsector. Both tables must hold the same
// number of rows for the subsector.
func copyColumnPositional(dst, src *table.Table, state, subsector string) (bool, *Error) {
	di, ok := dst.StateIndex(state)
	if !ok {
		return false, nil
	}
	si, ok := src.StateIndex(state)
	if !ok {
		return false, nil
	}

	targets := dst.SubsectorIndexes(subsector)
	rows := src.SubsectorRows(subsector)
	if len(targets) != len(rows) {
		return false, newAlignmentError("", state, subsector, len(targets), len(rows))
	}
	for j, i := range targets {
		dst.Rows[i].Values[di] = rows[j].Values[si]
	}
	return true, nil
}

// replaceSubsector drops dst's rows of subsector and appends src's rows of
// subsector in full. Rows are copied into dst's column layout.
func replaceSubsector(dst, src *table.Table, subsector string) (removed, added int) {
	removed = dst.RemoveSubsector(subsector)
	conv := rowConverter(dst, src)
	for _, r := range src.SubsectorRows(subsector) {
		dst.Rows = append(dst.Rows, conv(r))
		added++
	}
	return removed, added
}

// rowConverter returns a function that deep-copies a src row into dst's
// column layout. Columns are matched by name; columns missing from src are
// zero (numbers) or empty (attributes).
func rowConverter(dst, src *table.Table) func(table.Row) table.Row {
	if dst.SameColumns(src) {
		return func(r table.Row) table.Row {
			out := r.Clone()
			out.Type = table.RowOriginal
			return out
		}
	}

	dstSchema, srcSchema := dst.Schema(), src.Schema()
	stateFrom := make([]int, len(dstSchema.States))
	for i, s := range dstSchema.States {
		j, ok := src.StateIndex(s)
		if !ok {
			j = -1
		}
		stateFrom[i] = j
	}
	attrFrom := make([]int, len(dstSchema.Attributes))
	for i, a := range dstSchema.Attributes {
		attrFrom[i] = -1
		for j, b := range srcSchema.Attributes {
			if a == b {
				attrFrom[i] = j
				break
			}
		}
	}

	return func(r table.Row) table.Row {
		out := table.Row{
			Subsector: r.Subsector,
			Timestamp: r.Timestamp,
			Attrs:     make([]string, len(attrFrom)),
			Values:    make([]float64, len(stateFrom)),
			Type:      table.RowOriginal,
		}
		for i, j := range attrFrom {
			if j >= 0 {
				out.Attrs[i] = r.Attrs[j]
			}
		}
		for i, j := range stateFrom {
			if j >= 0 {
				out.Values[i] = r.Values[j]
			}
		}
		return out
	}
}
