package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: fallback
description: "Texas trucking falls back to high_growth"
year: 2030
tables:
  - scenario: baseline
    file: tables/2030_baseline.csv
  - scenario: high_growth
    file: tables/2030_high_growth.csv
request:
  year: 2030
  scenario: baseline
  fallback_scenarios:
    "tx,trucking": high_growth
  custom_values:
    "ca,bus": 0.5
assertions:
  - type: row_count
    count: 3
`

const failingScenario = `name: wrong_count
description: "Asserts a row count the composition does not produce"
year: 2030
tables:
  - scenario: baseline
    file: tables/2030_baseline.csv
request:
  year: 2030
  scenario: baseline
assertions:
  - type: row_count
    count: 7
`

// writeScenarioDir creates a scenarios directory with the shared tables.
func writeScenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "tables/2030_baseline.csv", baselineCSV)
	writeFile(t, dir, "tables/2030_high_growth.csv", highGrowthCSV)
	for name, content := range scenarios {
		writeFile(t, dir, name, content)
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := executeRoot(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := executeRoot(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	stdout, _, err := executeRoot(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found")
}

func TestTestCommandPassingScenario(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"fallback.yaml": passingScenario})

	stdout, _, err := executeRoot(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ fallback")
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"fallback.yaml":    passingScenario,
		"wrong_count.yaml": failingScenario,
	})

	stdout, _, err := executeRoot(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"fallback.yaml":    passingScenario,
		"wrong_count.yaml": failingScenario,
	})

	stdout, _, err := executeRoot(t, "test", dir, "--filter", "fall*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"fallback.yaml": passingScenario})

	stdout, _, err := executeRoot(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ fallback (golden updated)")

	goldenPath := filepath.Join(dir, "golden", "fallback.golden")
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t, fallbackOutput, string(data))

	_, _, err = executeRoot(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("weather_datetime\n"), 0o644))
	stdout, _, err = executeRoot(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, stdout, "does not match golden file")
}
