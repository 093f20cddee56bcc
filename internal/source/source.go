// Package source loads scenario tables.
//
// A Source maps (year, scenario) to an immutable table.Table. Dir reads the
// "{year}_{scenario}.csv.gz" files produced by the demand model; the SQLite
// store in internal/store serves tables that were imported from such files.
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/roach88/loadmix/internal/table"
)

// ErrNotFound is wrapped by every error reporting a missing scenario table.
var ErrNotFound = errors.New("scenario table not found")

// Source loads scenario tables. Returned tables must not be modified by the
// caller.
type Source interface {
	Load(ctx context.Context, year int, scenario string) (*table.Table, error)
}

// validScenarioID restricts scenario ids to names that are safe as file name
// components.
var validScenarioID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)

// ValidateScenarioID rejects ids that could escape the data directory.
func ValidateScenarioID(scenario string) error {
	if !validScenarioID.MatchString(scenario) || scenario == "." || scenario == ".." {
		return fmt.Errorf("invalid scenario id %q", scenario)
	}
	return nil
}

// NotFound builds the error returned for a missing (year, scenario).
func NotFound(year int, scenario string) error {
	return fmt.Errorf("%w: year %d scenario %q", ErrNotFound, year, scenario)
}

// IsNotFound reports whether err marks a missing scenario table.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
