package request

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/loadmix/internal/table"
)

// CompositionRequest describes one composed table.
//
// Maps are keyed by normalized names (see table.NormalizeState and
// table.NormalizeName). Iteration order is fixed by the Sorted* accessors.
type CompositionRequest struct {
	Year int

	// WeatherYear restricts every loaded table to rows in that calendar
	// year. Zero disables the filter.
	WeatherYear int

	GlobalScenario         string
	StateBaseScenarios     map[string]string
	FallbackOverrides      map[OverrideKey]string
	CustomScaling          map[OverrideKey]float64
	BaselineOnlySubsectors map[string]bool
	ShedShiftEnabled       map[string]bool
}

// New returns an empty request for year and the global scenario.
func New(year int, globalScenario string) *CompositionRequest {
	return &CompositionRequest{
		Year:                   year,
		GlobalScenario:         strings.TrimSpace(globalScenario),
		StateBaseScenarios:     map[string]string{},
		FallbackOverrides:      map[OverrideKey]string{},
		CustomScaling:          map[OverrideKey]float64{},
		BaselineOnlySubsectors: map[string]bool{},
		ShedShiftEnabled:       map[string]bool{},
	}
}

// ErrInvalidRequest is wrapped by every Validate failure.
var ErrInvalidRequest = errors.New("invalid composition request")

// Validate checks the fields a composition cannot run without.
func (r *CompositionRequest) Validate() error {
	if r.Year <= 0 {
		return fmt.Errorf("%w: year must be positive, got %d", ErrInvalidRequest, r.Year)
	}
	if r.GlobalScenario == "" {
		return fmt.Errorf("%w: scenario is required", ErrInvalidRequest)
	}
	if r.WeatherYear < 0 {
		return fmt.Errorf("%w: weather_year must not be negative", ErrInvalidRequest)
	}
	for state := range r.StateBaseScenarios {
		if table.IsAllStates(state) {
			return fmt.Errorf("%w: state base scenarios cannot target %s", ErrInvalidRequest, table.AllStates)
		}
	}
	return nil
}

// IsBaselineOnly reports whether subsector is pinned to the baseline scenario.
func (r *CompositionRequest) IsBaselineOnly(subsector string) bool {
	return r.BaselineOnlySubsectors[subsector]
}

// EffectiveBase returns the scenario that currently supplies state's values
// before fallback overrides: its state base if one is configured, otherwise
// the global scenario. The all-states sentinel always resolves to the global
// scenario.
func (r *CompositionRequest) EffectiveBase(state string) string {
	if table.IsAllStates(state) {
		return r.GlobalScenario
	}
	if s, ok := r.StateBaseScenarios[table.NormalizeState(state)]; ok && s != "" {
		return s
	}
	return r.GlobalScenario
}

// StateBase is one state base override.
type StateBase struct {
	State    string
	Scenario string
}

// SortedStateBases returns state base overrides ordered by state.
func (r *CompositionRequest) SortedStateBases() []StateBase {
	out := make([]StateBase, 0, len(r.StateBaseScenarios))
	for state, scenario := range r.StateBaseScenarios {
		out = append(out, StateBase{State: state, Scenario: scenario})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })
	return out
}

// Fallback is one subsector fallback override.
type Fallback struct {
	Key      OverrideKey
	Scenario string
}

// SortedFallbacks returns fallback overrides with all-states entries first,
// then specific states, each ordered by state and subsector. A specific
// state therefore refines an all-states replacement of the same subsector.
func (r *CompositionRequest) SortedFallbacks() []Fallback {
	out := make([]Fallback, 0, len(r.FallbackOverrides))
	for k, s := range r.FallbackOverrides {
		out = append(out, Fallback{Key: k, Scenario: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// Scaling is one custom scaling entry.
type Scaling struct {
	Key    OverrideKey
	Factor float64
}

// SortedScaling returns scaling entries in key order.
func (r *CompositionRequest) SortedScaling() []Scaling {
	out := make([]Scaling, 0, len(r.CustomScaling))
	for k, f := range r.CustomScaling {
		out = append(out, Scaling{Key: k, Factor: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// SortedBaselineOnly returns the baseline-only subsectors in order.
func (r *CompositionRequest) SortedBaselineOnly() []string {
	out := make([]string, 0, len(r.BaselineOnlySubsectors))
	for s, on := range r.BaselineOnlySubsectors {
		if on {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// EnabledShedShiftStates returns the states with shed/shift switched on, in
// order. The all-states sentinel is never returned.
func (r *CompositionRequest) EnabledShedShiftStates() []string {
	out := make([]string, 0, len(r.ShedShiftEnabled))
	for s, on := range r.ShedShiftEnabled {
		if on && !table.IsAllStates(s) {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Scenarios returns every scenario id the request can read, ordered and
// de-duplicated. baseline is included when any subsector is baseline-only.
// Fallbacks that equal their effective base are omitted since they are
// skipped during composition.
func (r *CompositionRequest) Scenarios(baseline string) []string {
	seen := map[string]bool{r.GlobalScenario: true}
	for _, sb := range r.StateBaseScenarios {
		seen[sb] = true
	}
	for k, s := range r.FallbackOverrides {
		if r.IsBaselineOnly(k.Subsector) || s == r.EffectiveBase(k.State) {
			continue
		}
		seen[s] = true
	}
	if len(r.SortedBaselineOnly()) > 0 {
		seen[baseline] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		if s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
