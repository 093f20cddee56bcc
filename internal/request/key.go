package request

import (
	"fmt"
	"strings"

	"github.com/roach88/loadmix/internal/table"
)

// OverrideKey addresses one subsector in one state, or in every state when
// AllStates reports true.
type OverrideKey struct {
	State     string
	Subsector string
}

// AllStatesKey builds a key that applies to every state column.
func AllStatesKey(subsector string) OverrideKey {
	return OverrideKey{State: table.AllStates, Subsector: table.NormalizeName(subsector)}
}

// StateKey builds a key for a single state.
func StateKey(state, subsector string) OverrideKey {
	if table.IsAllStates(state) {
		return AllStatesKey(subsector)
	}
	return OverrideKey{State: table.NormalizeState(state), Subsector: table.NormalizeName(subsector)}
}

// AllStates reports whether the key targets every state.
func (k OverrideKey) AllStates() bool {
	return k.State == table.AllStates
}

// String renders the key in its wire form "state,subsector".
func (k OverrideKey) String() string {
	return k.State + "," + k.Subsector
}

// less orders all-states keys before specific states, then by state and
// subsector.
func (k OverrideKey) less(o OverrideKey) bool {
	if k.AllStates() != o.AllStates() {
		return k.AllStates()
	}
	if k.State != o.State {
		return k.State < o.State
	}
	return k.Subsector < o.Subsector
}

// KeyParseError reports a malformed "state,subsector" key.
type KeyParseError struct {
	Raw    string
	Reason string
}

func (e *KeyParseError) Error() string {
	return fmt.Sprintf("invalid override key %q: %s", e.Raw, e.Reason)
}

// ParseKey parses "state,subsector". Everything after the first comma is the
// subsector, so subsector names may themselves contain commas.
func ParseKey(raw string) (OverrideKey, error) {
	state, subsector, found := strings.Cut(raw, ",")
	if !found {
		return OverrideKey{}, &KeyParseError{Raw: raw, Reason: "expected \"state,subsector\""}
	}
	if strings.TrimSpace(state) == "" {
		return OverrideKey{}, &KeyParseError{Raw: raw, Reason: "empty state"}
	}
	if strings.TrimSpace(subsector) == "" {
		return OverrideKey{}, &KeyParseError{Raw: raw, Reason: "empty subsector"}
	}
	return StateKey(state, subsector), nil
}
