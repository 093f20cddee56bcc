package request

import "fmt"

// DiagnosticCode categorizes recoverable conditions.
type DiagnosticCode string

const (
	// DiagKeyParse marks an override entry dropped because its key was malformed.
	DiagKeyParse DiagnosticCode = "KEY_PARSE"

	// DiagInvalidFactor marks a scaling entry dropped because its factor was
	// not a finite, non-negative number.
	DiagInvalidFactor DiagnosticCode = "INVALID_FACTOR"

	// DiagInvalidScenario marks an entry dropped because it named no scenario.
	DiagInvalidScenario DiagnosticCode = "INVALID_SCENARIO"

	// DiagInvalidFlag marks a shed/shift flag that could not be read as a bool.
	DiagInvalidFlag DiagnosticCode = "INVALID_FLAG"

	// DiagClampedValue marks a shed/shift value clamped to zero. Total demand
	// is not conserved for that row.
	DiagClampedValue DiagnosticCode = "CLAMPED_VALUE"
)

// Diagnostic is a non-fatal condition recorded during decoding or
// composition.
type Diagnostic struct {
	Code      DiagnosticCode `json:"code" yaml:"code"`
	Message   string         `json:"message" yaml:"message"`
	Field     string         `json:"field,omitempty" yaml:"field,omitempty"`
	State     string         `json:"state,omitempty" yaml:"state,omitempty"`
	Subsector string         `json:"subsector,omitempty" yaml:"subsector,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", d.Code, d.Message, d.Field)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// Diagnostics collects diagnostics in the order they were recorded.
type Diagnostics []Diagnostic

// Add appends a diagnostic.
func (ds *Diagnostics) Add(d Diagnostic) {
	*ds = append(*ds, d)
}

// Count returns how many diagnostics carry code.
func (ds Diagnostics) Count(code DiagnosticCode) int {
	n := 0
	for _, d := range ds {
		if d.Code == code {
			n++
		}
	}
	return n
}
