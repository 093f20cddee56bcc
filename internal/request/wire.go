package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/loadmix/internal/table"
)

// Payload is the wire form of a composition request as posted by the web
// form or written in a request file. Scalars are accepted either as numbers
// or as strings since form inputs arrive as text.
type Payload struct {
	Year                   any            `json:"year" yaml:"year"`
	Scenario               string         `json:"scenario" yaml:"scenario"`
	WeatherYear            any            `json:"weather_year,omitempty" yaml:"weather_year,omitempty"`
	CustomValues           map[string]any `json:"custom_values,omitempty" yaml:"custom_values,omitempty"`
	FallbackScenarios      map[string]any `json:"fallback_scenarios,omitempty" yaml:"fallback_scenarios,omitempty"`
	StateBaseScenarios     map[string]any `json:"state_base_scenarios,omitempty" yaml:"state_base_scenarios,omitempty"`
	BaselineOnlySubsectors []string       `json:"baseline_only_subsectors,omitempty" yaml:"baseline_only_subsectors,omitempty"`
	ShedShiftEnabled       map[string]any `json:"shed_shift_enabled,omitempty" yaml:"shed_shift_enabled,omitempty"`
}

// DecodeJSON reads a JSON payload and converts it with FromPayload.
func DecodeJSON(r io.Reader) (*CompositionRequest, Diagnostics, error) {
	var p Payload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, nil, fmt.Errorf("%w: malformed JSON: %w", ErrInvalidRequest, err)
	}
	return FromPayload(p)
}

// LoadFile reads a YAML (or JSON) request file. Unknown fields are rejected.
func LoadFile(path string) (*CompositionRequest, Diagnostics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read request file: %w", err)
	}

	var p Payload
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to parse request file: %v", ErrInvalidRequest, err)
	}
	return FromPayload(p)
}

// FromPayload converts and validates a wire payload.
//
// Malformed map entries are dropped and reported as diagnostics; the
// request is still usable. A missing year or scenario is an error.
func FromPayload(p Payload) (*CompositionRequest, Diagnostics, error) {
	var diags Diagnostics

	year, err := toInt(p.Year)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: year: %v", ErrInvalidRequest, err)
	}
	req := New(year, p.Scenario)

	if p.WeatherYear != nil {
		wy, err := toInt(p.WeatherYear)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: weather_year: %v", ErrInvalidRequest, err)
		}
		req.WeatherYear = wy
	}

	for _, raw := range sortedKeys(p.CustomValues) {
		key, err := ParseKey(raw)
		if err != nil {
			diags.Add(keyDiagnostic("custom_values", raw, err))
			continue
		}
		f, err := toFloat(p.CustomValues[raw])
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			diags.Add(Diagnostic{
				Code:      DiagInvalidFactor,
				Message:   fmt.Sprintf("scaling factor %v is not a finite non-negative number", p.CustomValues[raw]),
				Field:     "custom_values." + raw,
				State:     key.State,
				Subsector: key.Subsector,
			})
			continue
		}
		req.CustomScaling[key] = f
	}

	for _, raw := range sortedKeys(p.FallbackScenarios) {
		key, err := ParseKey(raw)
		if err != nil {
			diags.Add(keyDiagnostic("fallback_scenarios", raw, err))
			continue
		}
		scenario, err := toString(p.FallbackScenarios[raw])
		if err != nil || scenario == "" {
			diags.Add(Diagnostic{
				Code:      DiagInvalidScenario,
				Message:   "fallback entry names no scenario",
				Field:     "fallback_scenarios." + raw,
				State:     key.State,
				Subsector: key.Subsector,
			})
			continue
		}
		req.FallbackOverrides[key] = scenario
	}

	for _, raw := range sortedKeys(p.StateBaseScenarios) {
		state := table.NormalizeState(raw)
		scenario, err := toString(p.StateBaseScenarios[raw])
		if state == "" || table.IsAllStates(state) || err != nil || scenario == "" {
			diags.Add(Diagnostic{
				Code:    DiagInvalidScenario,
				Message: "state base entry needs a state and a scenario",
				Field:   "state_base_scenarios." + raw,
				State:   state,
			})
			continue
		}
		req.StateBaseScenarios[state] = scenario
	}

	for _, s := range p.BaselineOnlySubsectors {
		if name := table.NormalizeName(s); name != "" {
			req.BaselineOnlySubsectors[name] = true
		}
	}

	for _, raw := range sortedKeys(p.ShedShiftEnabled) {
		state := table.NormalizeState(raw)
		on, err := toBool(p.ShedShiftEnabled[raw])
		if err != nil || state == "" {
			diags.Add(Diagnostic{
				Code:    DiagInvalidFlag,
				Message: fmt.Sprintf("shed/shift flag %v is not a boolean", p.ShedShiftEnabled[raw]),
				Field:   "shed_shift_enabled." + raw,
				State:   state,
			})
			continue
		}
		req.ShedShiftEnabled[state] = on
	}

	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	return req, diags, nil
}

// ToPayload renders the request back into its wire form.
func (r *CompositionRequest) ToPayload() Payload {
	p := Payload{
		Year:     r.Year,
		Scenario: r.GlobalScenario,
	}
	if r.WeatherYear != 0 {
		p.WeatherYear = r.WeatherYear
	}
	if len(r.CustomScaling) > 0 {
		p.CustomValues = make(map[string]any, len(r.CustomScaling))
		for k, f := range r.CustomScaling {
			p.CustomValues[k.String()] = f
		}
	}
	if len(r.FallbackOverrides) > 0 {
		p.FallbackScenarios = make(map[string]any, len(r.FallbackOverrides))
		for k, s := range r.FallbackOverrides {
			p.FallbackScenarios[k.String()] = s
		}
	}
	if len(r.StateBaseScenarios) > 0 {
		p.StateBaseScenarios = make(map[string]any, len(r.StateBaseScenarios))
		for k, s := range r.StateBaseScenarios {
			p.StateBaseScenarios[k] = s
		}
	}
	p.BaselineOnlySubsectors = r.SortedBaselineOnly()
	if len(r.ShedShiftEnabled) > 0 {
		p.ShedShiftEnabled = make(map[string]any, len(r.ShedShiftEnabled))
		for k, on := range r.ShedShiftEnabled {
			p.ShedShiftEnabled[k] = on
		}
	}
	return p
}

func keyDiagnostic(field, raw string, err error) Diagnostic {
	return Diagnostic{
		Code:    DiagKeyParse,
		Message: err.Error(),
		Field:   field + "." + raw,
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case nil:
		return "", fmt.Errorf("missing")
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("cannot parse float from %T", v)
	}
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		return int(t), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	case nil:
		return 0, fmt.Errorf("missing")
	default:
		return 0, fmt.Errorf("cannot parse integer from %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(t))
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	default:
		return false, fmt.Errorf("cannot parse bool from %T", v)
	}
}
