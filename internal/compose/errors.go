package compose

import (
	"errors"
	"fmt"

	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/source"
)

// ErrorCode categorizes fatal composition errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a requested scenario table does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeLoadFailed indicates a scenario table exists but could not be read.
	ErrCodeLoadFailed ErrorCode = "LOAD_FAILED"

	// ErrCodeAlignmentMismatch indicates a positional fallback whose source
	// rows do not line up with the composed rows of the subsector.
	ErrCodeAlignmentMismatch ErrorCode = "ALIGNMENT_MISMATCH"

	// ErrCodeInvalidRequest indicates the request failed validation.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrCodeEmptyWeatherYear indicates a table has no rows for the requested
	// weather year.
	ErrCodeEmptyWeatherYear ErrorCode = "EMPTY_WEATHER_YEAR"
)

// Error is a fatal composition error. Nothing is emitted for a request that
// fails with an Error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Scenario, State and Subsector locate the failing override, when known.
	Scenario  string
	State     string
	Subsector string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Scenario != "" {
		msg += fmt.Sprintf(" (scenario=%s)", e.Scenario)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsNotFound returns true if err reports a missing scenario table.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound || source.IsNotFound(err)
}

// IsAlignmentError returns true if err reports a positional alignment failure.
func IsAlignmentError(err error) bool {
	return CodeOf(err) == ErrCodeAlignmentMismatch
}

// IsInvalidRequest returns true if err reports a request validation failure.
func IsInvalidRequest(err error) bool {
	return CodeOf(err) == ErrCodeInvalidRequest || errors.Is(err, request.ErrInvalidRequest)
}

func newLoadError(year int, scenario string, err error) *Error {
	if source.IsNotFound(err) {
		return &Error{
			Code:     ErrCodeNotFound,
			Message:  fmt.Sprintf("no table for year %d", year),
			Scenario: scenario,
			Err:      err,
		}
	}
	return &Error{
		Code:     ErrCodeLoadFailed,
		Message:  fmt.Sprintf("failed to load table for year %d", year),
		Scenario: scenario,
		Err:      err,
	}
}

func newAlignmentError(scenario, state, subsector string, composed, fallback int) *Error {
	return &Error{
		Code: ErrCodeAlignmentMismatch,
		Message: fmt.Sprintf("subsector %q has %d composed rows but %d fallback rows; positional replacement needs equal counts",
			subsector, composed, fallback),
		Scenario:  scenario,
		State:     state,
		Subsector: subsector,
	}
}
