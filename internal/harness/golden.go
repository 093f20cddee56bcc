package harness

import (
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where scenario snapshots are stored, relative to the test's
// package directory.
const GoldenDir = "testdata/golden"

// RunWithGolden executes a scenario and compares the exported CSV against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Assertion failures are reported through t. A scenario whose composition
// fails has no output to snapshot and fails the test unless the scenario
// asserts that error.
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the output doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's output against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
//
// A failed composition is snapshotted as its error code (see Snapshot).
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", scenarioName, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

// Snapshot returns the bytes stored in a golden file for result: the
// exported CSV, or "error: CODE" when composition failed.
func Snapshot(result *Result) ([]byte, error) {
	if result.Output != nil {
		return result.Output, nil
	}
	if result.ErrorCode == "" {
		return nil, fmt.Errorf("produced no output")
	}
	return []byte("error: " + result.ErrorCode + "\n"), nil
}
