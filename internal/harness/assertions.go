package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/source"
	"github.com/roach88/loadmix/internal/table"
)

// Tolerance is the absolute difference under which two values are equal.
const Tolerance = 1e-9

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Output   []byte // Exported table for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Output) > 0 {
		fmt.Fprintf(&buf, "\nComposed table:\n")
		for _, line := range strings.Split(strings.TrimRight(string(e.Output), "\n"), "\n") {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against result and returns the
// failure messages in assertion order.
//
// A composition that failed only satisfies error assertions; every other
// assertion against it fails with the error code. A composition that
// succeeded fails every error assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	if a.Type == AssertError {
		return assertError(result, a)
	}
	if a.Type == AssertDiagnostic {
		return assertDiagnostic(result, a)
	}
	if result.Table == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: "a composed table",
			Actual:   fmt.Sprintf("composition failed with %s", result.ErrorCode),
		}
	}

	switch a.Type {
	case AssertRowCount:
		return assertRowCount(result, a)
	case AssertValue:
		return assertValue(result, a)
	case AssertColumnSum:
		return assertColumnSum(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertError checks the composition failed with the expected code.
func assertError(result *Result, a Assertion) error {
	if result.ErrorCode == a.Code {
		return nil
	}
	actual := "composition succeeded"
	if result.ErrorCode != "" {
		actual = "error " + result.ErrorCode
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: "error " + a.Code,
		Actual:   actual,
		Output:   result.Output,
	}
}

// assertDiagnostic checks exactly Count diagnostics carry Code, optionally
// narrowed to a state and subsector.
func assertDiagnostic(result *Result, a Assertion) error {
	count := 0
	for _, d := range result.Diagnostics {
		if d.Code != request.DiagnosticCode(a.Code) {
			continue
		}
		if a.State != "" && d.State != table.NormalizeState(a.State) {
			continue
		}
		if a.Subsector != "" && d.Subsector != table.NormalizeName(a.Subsector) {
			continue
		}
		count++
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertDiagnostic,
			Expected: fmt.Sprintf("%d diagnostics with code %s", *a.Count, a.Code),
			Actual:   fmt.Sprintf("%d (all: %v)", count, result.Diagnostics),
		}
	}
	return nil
}

// assertRowCount checks the number of rows accepted by the filters.
func assertRowCount(result *Result, a Assertion) error {
	rows, err := matchRows(result.Table, a)
	if err != nil {
		return err
	}
	if len(rows) != *a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows matching %s", *a.Count, describeFilter(a)),
			Actual:   fmt.Sprintf("%d rows", len(rows)),
			Output:   result.Output,
		}
	}
	return nil
}

// assertValue checks the single row accepted by the filters holds Equals.
func assertValue(result *Result, a Assertion) error {
	col, ok := result.Table.StateIndex(a.State)
	if !ok {
		return fmt.Errorf("state column %q not in composed table", a.State)
	}
	rows, err := matchRows(result.Table, a)
	if err != nil {
		return err
	}
	if len(rows) != 1 {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("exactly one row matching %s", describeFilter(a)),
			Actual:   fmt.Sprintf("%d rows", len(rows)),
			Output:   result.Output,
		}
	}
	if got := rows[0].Values[col]; !approxEqual(got, *a.Equals) {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %v for %s", a.State, *a.Equals, describeFilter(a)),
			Actual:   fmt.Sprintf("%v", got),
			Output:   result.Output,
		}
	}
	return nil
}

// assertColumnSum checks State values of every accepted row sum to Equals.
func assertColumnSum(result *Result, a Assertion) error {
	col, ok := result.Table.StateIndex(a.State)
	if !ok {
		return fmt.Errorf("state column %q not in composed table", a.State)
	}
	rows, err := matchRows(result.Table, a)
	if err != nil {
		return err
	}
	var sum float64
	for _, r := range rows {
		sum += r.Values[col]
	}
	if !approxEqual(sum, *a.Equals) {
		return &AssertionError{
			Type:     AssertColumnSum,
			Expected: fmt.Sprintf("sum(%s) = %v over %s", a.State, *a.Equals, describeFilter(a)),
			Actual:   fmt.Sprintf("%v over %d rows", sum, len(rows)),
			Output:   result.Output,
		}
	}
	return nil
}

// matchRows returns the rows accepted by the assertion's filters.
func matchRows(t *table.Table, a Assertion) ([]table.Row, error) {
	var at int64
	if a.Timestamp != "" {
		ts, err := source.ParseTimestamp(a.Timestamp)
		if err != nil {
			return nil, err
		}
		at = ts.UnixNano()
	}
	sub := table.NormalizeName(a.Subsector)

	var out []table.Row
	for _, r := range t.Rows {
		if sub != "" && r.Subsector != sub {
			continue
		}
		if a.RowType != "" && string(r.Type) != a.RowType {
			continue
		}
		if a.Timestamp != "" && r.Timestamp.UnixNano() != at {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func describeFilter(a Assertion) string {
	var parts []string
	if a.Subsector != "" {
		parts = append(parts, "subsector="+a.Subsector)
	}
	if a.RowType != "" {
		parts = append(parts, "row_type="+a.RowType)
	}
	if a.Timestamp != "" {
		parts = append(parts, "timestamp="+a.Timestamp)
	}
	if len(parts) == 0 {
		return "all rows"
	}
	return strings.Join(parts, " ")
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance
}
