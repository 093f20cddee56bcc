package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/shedshift"
)

const twoScenarioBaseline = `weather_datetime,subsector,tx,ca
2012-01-01 00:00:00,trucking,10,100
2012-01-01 01:00:00,trucking,11,101
2012-01-01 00:00:00,bus,20,200
`

func ptr[T any](v T) *T { return &v }

func baseScenario() *Scenario {
	return &Scenario{
		Name:        "base",
		Description: "base scenario",
		Year:        2030,
		Tables: []TableSpec{
			{Scenario: "baseline", CSV: twoScenarioBaseline},
		},
		Request: request.Payload{Year: 2030, Scenario: "baseline"},
		Assertions: []Assertion{
			{Type: AssertRowCount, Count: ptr(3)},
		},
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(context.Background(), baseScenario())
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.ErrorCode)
	require.NotNil(t, result.Table)
	assert.Equal(t, 3, result.Table.Len())
	assert.Equal(t, "weather_datetime,subsector,tx,ca,row_type,weather_year\n"+
		"2012-01-01 00:00:00,trucking,10,100,original,2012\n"+
		"2012-01-01 01:00:00,trucking,11,101,original,2012\n"+
		"2012-01-01 00:00:00,bus,20,200,original,2012\n", string(result.Output))
}

func TestRun_FailingAssertion(t *testing.T) {
	s := baseScenario()
	s.Assertions = []Assertion{
		{Type: AssertRowCount, Count: ptr(4)},
		{Type: AssertValue, Subsector: "bus", Timestamp: "2012-01-01 00:00:00", State: "tx", Equals: ptr(21.0)},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], "4 rows matching all rows")
	assert.Contains(t, result.Errors[1], "assertions[1]")
	assert.Contains(t, result.Errors[1], "tx = 21")
}

func TestRun_AlignmentMismatch(t *testing.T) {
	s := baseScenario()
	s.Tables = append(s.Tables, TableSpec{Scenario: "short", CSV: "weather_datetime,subsector,tx,ca\n2012-01-01 00:00:00,trucking,1,1\n"})
	s.Request.FallbackScenarios = map[string]any{"tx,trucking": "short"}
	s.Assertions = []Assertion{{Type: AssertError, Code: "ALIGNMENT_MISMATCH"}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Nil(t, result.Output)
	assert.Nil(t, result.Table)
}

func TestRun_KeyedAlignment(t *testing.T) {
	s := baseScenario()
	s.Options.FallbackAlignment = "keyed"
	s.Tables = append(s.Tables, TableSpec{Scenario: "short", CSV: "weather_datetime,subsector,tx,ca\n2012-01-01 01:00:00,trucking,7,7\n"})
	s.Request.FallbackScenarios = map[string]any{"tx,trucking": "short"}
	s.Assertions = []Assertion{
		{Type: AssertValue, Subsector: "trucking", Timestamp: "2012-01-01 00:00:00", State: "tx", Equals: ptr(10.0)},
		{Type: AssertValue, Subsector: "trucking", Timestamp: "2012-01-01 01:00:00", State: "tx", Equals: ptr(7.0)},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InvalidRequest(t *testing.T) {
	s := baseScenario()
	s.Request.Scenario = ""
	s.Assertions = []Assertion{{Type: AssertError, Code: "INVALID_REQUEST"}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ErrorAssertionOnSuccess(t *testing.T) {
	s := baseScenario()
	s.Assertions = []Assertion{{Type: AssertError, Code: "NOT_FOUND"}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "composition succeeded")
}

func TestRun_TableAssertionOnFailure(t *testing.T) {
	s := baseScenario()
	s.Request.Scenario = "absent"

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "NOT_FOUND", result.ErrorCode)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "composition failed with NOT_FOUND")
}

func TestRun_BrokenScenario(t *testing.T) {
	t.Run("unparseable table", func(t *testing.T) {
		s := baseScenario()
		s.Tables[0].CSV = "subsector,tx\ntrucking,1\n"
		_, err := Run(context.Background(), s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tables[0] (baseline)")
	})

	t.Run("bad shed shift", func(t *testing.T) {
		s := baseScenario()
		s.ShedShift = map[string]map[string]shedshift.Fractions{"tx": {"trucking": {Shed: -1}}}
		_, err := Run(context.Background(), s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shed_shift")
	})
}

func TestRun_Deterministic(t *testing.T) {
	s := baseScenario()
	s.ShedShift = map[string]map[string]shedshift.Fractions{"ca": {"bus": {Shed: 0.5}}}
	s.Request.ShedShiftEnabled = map[string]any{"ca": true}
	s.Options.PeakRows = 1
	s.Assertions = []Assertion{{Type: AssertRowCount, Count: ptr(5)}}

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, first.Pass, "errors: %v", first.Errors)

	for i := 0; i < 5; i++ {
		again, err := Run(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, first.Output, again.Output)
	}
}

func TestRun_FreshSourcePerScenario(t *testing.T) {
	with := baseScenario()
	with.Tables = append(with.Tables, TableSpec{Scenario: "extra", CSV: twoScenarioBaseline})
	with.Request.StateBaseScenarios = map[string]any{"tx": "extra"}

	result, err := Run(context.Background(), with)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	without := baseScenario()
	without.Request.StateBaseScenarios = map[string]any{"tx": "extra"}
	without.Assertions = []Assertion{{Type: AssertError, Code: "NOT_FOUND"}}

	result, err = Run(context.Background(), without)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestResult_AddError(t *testing.T) {
	result := NewResult()
	assert.True(t, result.Pass)

	result.AddError("boom")
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"boom"}, result.Errors)
}
