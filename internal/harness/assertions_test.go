package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loadmix/internal/request"
)

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertRowCount,
		Expected: "2 rows",
		Actual:   "3 rows",
		Output:   []byte("h1,h2\na,b\n"),
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: row_count")
	assert.Contains(t, msg, "  Expected: 2 rows\n")
	assert.Contains(t, msg, "  Actual: 3 rows\n")
	assert.Contains(t, msg, "Composed table:\n  h1,h2\n  a,b\n")
}

func TestAssertDiagnostic_Filters(t *testing.T) {
	result := NewResult()
	result.ErrorCode = "NOT_FOUND"
	result.Diagnostics = request.Diagnostics{
		{Code: request.DiagInvalidFactor, State: "tx", Subsector: "trucking"},
		{Code: request.DiagInvalidFactor, State: "ca", Subsector: "trucking"},
		{Code: request.DiagKeyParse},
	}

	tests := []struct {
		name string
		a    Assertion
		pass bool
	}{
		{"all of code", Assertion{Type: AssertDiagnostic, Code: "INVALID_FACTOR", Count: ptr(2)}, true},
		{"by state", Assertion{Type: AssertDiagnostic, Code: "INVALID_FACTOR", State: "TX", Count: ptr(1)}, true},
		{"by subsector", Assertion{Type: AssertDiagnostic, Code: "INVALID_FACTOR", Subsector: "bus", Count: ptr(0)}, true},
		{"wrong count", Assertion{Type: AssertDiagnostic, Code: "KEY_PARSE", Count: ptr(2)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(result, []Assertion{tt.a})
			if tt.pass {
				assert.Empty(t, errs)
			} else {
				require.Len(t, errs, 1)
				assert.Contains(t, errs[0], "diagnostics with code KEY_PARSE")
			}
		})
	}
}

func TestApproxEqual(t *testing.T) {
	a, b := 0.1, 0.2
	assert.True(t, approxEqual(a+b, 0.3))
	assert.False(t, approxEqual(0.3, 0.31))
}
