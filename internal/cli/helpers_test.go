package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	baselineCSV = `weather_datetime,subsector,tx,ca
2012-01-01 00:00:00,trucking,10,100
2012-01-01 01:00:00,trucking,11,101
2012-01-01 00:00:00,bus,20,200
`
	highGrowthCSV = `weather_datetime,subsector,tx,ca
2012-01-01 00:00:00,trucking,30,300
2012-01-01 01:00:00,trucking,31,301
2012-01-01 00:00:00,bus,40,400
`

	// fallbackRequest swaps in high_growth for Texas trucking and halves
	// California buses.
	fallbackRequest = `year: 2030
scenario: baseline
fallback_scenarios:
  "tx,trucking": high_growth
custom_values:
  "ca,bus": 0.5
`

	fallbackOutput = `weather_datetime,subsector,tx,ca,row_type,weather_year
2012-01-01 00:00:00,trucking,30,100,original,2012
2012-01-01 01:00:00,trucking,31,101,original,2012
2012-01-01 00:00:00,bus,20,100,original,2012
`
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeDataDir creates a data directory holding the baseline and
// high_growth tables for 2030.
func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "2030_baseline.csv", baselineCSV)
	writeFile(t, dir, "2030_high_growth.csv", highGrowthCSV)
	return dir
}

// executeRoot runs the root command with args and returns stdout and
// stderr.
func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
