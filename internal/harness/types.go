package harness

import (
	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/table"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions match.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// ErrorCode is the composition error code, empty when composition
	// succeeded.
	ErrorCode string `json:"error_code,omitempty"`

	// Diagnostics are the decode and composition diagnostics, in order.
	Diagnostics request.Diagnostics `json:"diagnostics,omitempty"`

	// Output is the exported CSV of the composed table. Nil when
	// composition failed.
	Output []byte `json:"-"`

	// Table is the composed table. Nil when composition failed.
	Table *table.Table `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
