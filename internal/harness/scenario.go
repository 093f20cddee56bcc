package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/loadmix/internal/compose"
	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/shedshift"
)

// Scenario defines a composition conformance scenario.
// A scenario registers a set of in-memory scenario tables, runs one
// composition request against them and asserts on the composed table.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Year is the model year every table is registered under.
	Year int `yaml:"year"`

	// Attributes lists CSV columns read as text rather than state values.
	Attributes []string `yaml:"attributes,omitempty"`

	// Tables are the scenario tables available to the request.
	Tables []TableSpec `yaml:"tables"`

	// ShedShift maps state to subsector to fractions. Empty disables
	// decomposition for every state.
	ShedShift map[string]map[string]shedshift.Fractions `yaml:"shed_shift,omitempty"`

	// Options overrides engine defaults.
	Options EngineOptions `yaml:"options,omitempty"`

	// Request is the composition request in its wire form.
	Request request.Payload `yaml:"request"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`
}

// TableSpec is one scenario table, given inline or as a CSV file.
type TableSpec struct {
	// Scenario is the scenario id the table is registered under.
	Scenario string `yaml:"scenario"`

	// CSV holds the table inline.
	CSV string `yaml:"csv,omitempty"`

	// File is a CSV path, relative to the scenario file.
	File string `yaml:"file,omitempty"`
}

// EngineOptions is the subset of compose.Options a scenario may set.
type EngineOptions struct {
	BaselineScenario  string `yaml:"baseline_scenario,omitempty"`
	PeakRows          int    `yaml:"peak_rows,omitempty"`
	FallbackAlignment string `yaml:"fallback_alignment,omitempty"`
}

// Assertion validates the composition outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "error": composition fails with Code
	// - "row_count": Count rows match Subsector and RowType
	// - "value": the single matching row holds Equals in State
	// - "column_sum": State values of matching rows sum to Equals
	// - "diagnostic": Count diagnostics carry Code
	Type string `yaml:"type"`

	// Code is an error code (error) or diagnostic code (diagnostic).
	Code string `yaml:"code,omitempty"`

	// Filters. Empty fields match every row.
	Subsector string `yaml:"subsector,omitempty"`
	RowType   string `yaml:"row_type,omitempty"`
	Timestamp string `yaml:"timestamp,omitempty"`

	// State is the state column read by value and column_sum.
	State string `yaml:"state,omitempty"`

	// Equals is the expected value (value, column_sum).
	Equals *float64 `yaml:"equals,omitempty"`

	// Count is the expected number of rows or diagnostics.
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertError      = "error"
	AssertRowCount   = "row_count"
	AssertValue      = "value"
	AssertColumnSum  = "column_sum"
	AssertDiagnostic = "diagnostic"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Table file paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving table file paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, ts := range scenario.Tables {
		if ts.File != "" && !filepath.IsAbs(ts.File) && basePath != "" {
			scenario.Tables[i].File = filepath.Join(basePath, ts.File)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Year <= 0 {
		return fmt.Errorf("year is required and must be positive")
	}

	if len(s.Tables) == 0 {
		return fmt.Errorf("tables list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := compose.ParseAlignment(s.Options.FallbackAlignment); err != nil {
		return fmt.Errorf("options: %w", err)
	}

	seen := make(map[string]bool, len(s.Tables))
	for i, ts := range s.Tables {
		if ts.Scenario == "" {
			return fmt.Errorf("tables[%d]: scenario is required", i)
		}
		if seen[ts.Scenario] {
			return fmt.Errorf("tables[%d]: duplicate scenario %q", i, ts.Scenario)
		}
		seen[ts.Scenario] = true

		switch {
		case ts.CSV == "" && ts.File == "":
			return fmt.Errorf("tables[%d]: one of csv or file is required", i)
		case ts.CSV != "" && ts.File != "":
			return fmt.Errorf("tables[%d]: csv and file are mutually exclusive", i)
		case ts.File != "":
			if _, err := os.Stat(ts.File); os.IsNotExist(err) {
				return fmt.Errorf("tables[%d]: table file not found: %s", i, ts.File)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	case AssertRowCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for row_count", index)
		}
	case AssertValue:
		if a.State == "" || a.Equals == nil {
			return fmt.Errorf("assertions[%d]: state and equals are required for value", index)
		}
		if a.Subsector == "" || a.Timestamp == "" {
			return fmt.Errorf("assertions[%d]: subsector and timestamp are required for value", index)
		}
	case AssertColumnSum:
		if a.State == "" || a.Equals == nil {
			return fmt.Errorf("assertions[%d]: state and equals are required for column_sum", index)
		}
	case AssertDiagnostic:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for diagnostic", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for diagnostic", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
