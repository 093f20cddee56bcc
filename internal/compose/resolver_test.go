package compose

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/source"
	"github.com/roach88/loadmix/internal/table"
)

func TestCompose_GlobalBaseIsDeepCopy(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "high_growth")
	req.CustomScaling[request.AllStatesKey("bus")] = 2

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []float64{80, 82}, column(t, res.Table, "tx", "bus"))

	// The source table must be untouched for reuse by later requests.
	orig, err := src.Load(context.Background(), 2030, "high_growth")
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 41}, column(t, orig, "tx", "bus"))
}

func TestCompose_StateBaseMatchesByKey(t *testing.T) {
	src := standardSource(t)
	// Reordered and partial: only two of four keys present.
	src.Put(2030, "partial", mkTable(t,
		rowSpec{"bus", 1, 91, 901},
		rowSpec{"trucking", 0, 70, 700},
	))

	req := request.New(2030, "baseline")
	req.StateBaseScenarios["tx"] = "partial"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []float64{70, 11}, column(t, res.Table, "tx", "trucking"))
	assert.Equal(t, []float64{20, 91}, column(t, res.Table, "tx", "bus"))
	// Other states keep the global values.
	assert.Equal(t, []float64{100, 101}, column(t, res.Table, "ca", "trucking"))
}

func TestCompose_StateBaseDuplicateKeysMatchByOccurrence(t *testing.T) {
	src := source.NewMemory()
	src.Put(2030, "baseline", mkTable(t,
		rowSpec{"bus", 0, 1, 0},
		rowSpec{"bus", 0, 2, 0},
	))
	src.Put(2030, "alt", mkTable(t,
		rowSpec{"bus", 0, 10, 0},
		rowSpec{"bus", 0, 20, 0},
	))

	req := request.New(2030, "baseline")
	req.StateBaseScenarios["tx"] = "alt"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, column(t, res.Table, "tx", "bus"))
}

func TestCompose_StateBaseSameAsGlobalIsSkipped(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "baseline")
	req.StateBaseScenarios["tx"] = "baseline"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.TablesLoaded)
	assert.Equal(t, 1, src.Loads(2030, "baseline"))
}

func TestCompose_MissingStateColumnIsNoOp(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "baseline")
	req.StateBaseScenarios["zz"] = "high_growth"
	req.FallbackOverrides[request.StateKey("zz", "bus")] = "electrified"
	req.CustomScaling[request.StateKey("zz", "bus")] = 3

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)

	base, _ := src.Load(context.Background(), 2030, "baseline")
	assert.Equal(t, base.Rows, res.Table.Rows)
}

func TestCompose_FallbackPositional(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "baseline")
	req.FallbackOverrides[request.StateKey("tx", "trucking")] = "high_growth"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []float64{30, 31}, column(t, res.Table, "tx", "trucking"))
	assert.Equal(t, []float64{100, 101}, column(t, res.Table, "ca", "trucking"))
	assert.Equal(t, []float64{20, 21}, column(t, res.Table, "tx", "bus"))
}

func TestCompose_FallbackPositionalIgnoresTimestamps(t *testing.T) {
	src := standardSource(t)
	src.Put(2030, "shuffled", mkTable(t,
		rowSpec{"trucking", 1, 71, 0},
		rowSpec{"trucking", 0, 70, 0},
	))
	req := request.New(2030, "baseline")
	req.FallbackOverrides[request.StateKey("tx", "trucking")] = "shuffled"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []float64{71, 70}, column(t, res.Table, "tx", "trucking"))

	keyed, err := newEngine(src, nil, Options{FallbackAlignment: AlignKeyed}).Compose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []float64{70, 71}, column(t, keyed.Table, "tx", "trucking"))
}

func TestCompose_FallbackPositionalMismatchFails(t *testing.T) {
	src := standardSource(t)
	src.Put(2030, "short", mkTable(t, rowSpec{"trucking", 0, 1, 1}))

	req := request.New(2030, "baseline")
	req.FallbackOverrides[request.StateKey("tx", "trucking")] = "short"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsAlignmentError(err))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "short", ce.Scenario)
	assert.Equal(t, "trucking", ce.Subsector)
}

func TestCompose_FallbackAllStatesReplacesRows(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "baseline")
	req.FallbackOverrides[request.AllStatesKey("trucking")] = "high_growth"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []float64{30, 31}, column(t, res.Table, "tx", "trucking"))
	assert.Equal(t, []float64{300, 301}, column(t, res.Table, "ca", "trucking"))
	require.Equal(t, 4, res.Table.Len())
	// Replacement rows are appended after the untouched subsectors.
	assert.Equal(t, "bus", res.Table.Rows[0].Subsector)
	assert.Equal(t, "trucking", res.Table.Rows[3].Subsector)
}

func TestCompose_FallbackSpecificStateRefinesAllStates(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "baseline")
	req.FallbackOverrides[request.AllStatesKey("trucking")] = "high_growth"
	req.FallbackOverrides[request.StateKey("ca", "trucking")] = "electrified"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []float64{30, 31}, column(t, res.Table, "tx", "trucking"))
	assert.Equal(t, []float64{500, 501}, column(t, res.Table, "ca", "trucking"))
}

func TestCompose_FallbackEqualToEffectiveBaseIsSkipped(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "baseline")
	req.StateBaseScenarios["tx"] = "electrified"
	// Same as tx's effective base: must not revert to anything else.
	req.FallbackOverrides[request.StateKey("tx", "trucking")] = "electrified"
	// Differs from ca's effective base (global).
	req.FallbackOverrides[request.StateKey("ca", "trucking")] = "high_growth"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []float64{50, 51}, column(t, res.Table, "tx", "trucking"))
	assert.Equal(t, []float64{300, 301}, column(t, res.Table, "ca", "trucking"))
}

func TestCompose_FallbackSkipsBaselineOnly(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "high_growth")
	req.FallbackOverrides[request.StateKey("tx", "bus")] = "electrified"
	req.BaselineOnlySubsectors["bus"] = true

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 21}, column(t, res.Table, "tx", "bus"))
	assert.Zero(t, src.Loads(2030, "electrified"))
}

func TestCompose_BaselineOnlySupremacy(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "high_growth")
	req.StateBaseScenarios["tx"] = "electrified"
	req.FallbackOverrides[request.AllStatesKey("bus")] = "electrified"
	req.FallbackOverrides[request.StateKey("ca", "bus")] = "high_growth"
	req.CustomScaling[request.AllStatesKey("bus")] = 5
	req.CustomScaling[request.StateKey("tx", "bus")] = 7
	req.BaselineOnlySubsectors["bus"] = true

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)

	base, _ := src.Load(context.Background(), 2030, "baseline")
	assert.Equal(t, base.SubsectorRows("bus"), res.Table.SubsectorRows("bus"))

	// Other subsectors still see the overrides.
	assert.Equal(t, []float64{50, 51}, column(t, res.Table, "tx", "trucking"))
}

func TestCompose_BaselineScenarioIsConfigurable(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "baseline")
	req.BaselineOnlySubsectors["bus"] = true

	res, err := newEngine(src, nil, Options{BaselineScenario: "electrified"}).Compose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []float64{60, 61}, column(t, res.Table, "tx", "bus"))
}

func TestCompose_RowsFromDifferentLayoutAreRemapped(t *testing.T) {
	src := standardSource(t)
	other := table.MustNew(table.Schema{
		TimestampColumn: "weather_datetime",
		SubsectorColumn: "subsector",
		States:          []string{"ca", "ny"},
	})
	require.NoError(t, other.Append(table.Row{Subsector: "bus", Timestamp: hour(0), Values: []float64{7, 8}}))
	src.Put(2030, "other", other)

	req := request.New(2030, "baseline")
	req.FallbackOverrides[request.AllStatesKey("bus")] = "other"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, column(t, res.Table, "tx", "bus"))
	assert.Equal(t, []float64{7}, column(t, res.Table, "ca", "bus"))
	assert.Equal(t, []string{"tx", "ca"}, res.Table.States())
}

func TestCompose_NotFoundFailsBeforeComposition(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "baseline")
	req.FallbackOverrides[request.StateKey("tx", "bus")] = "missing"

	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, ErrCodeNotFound, CodeOf(err))
	assert.Contains(t, err.Error(), "missing")
}

func TestCompose_InvalidRequest(t *testing.T) {
	_, err := newEngine(standardSource(t), nil, Options{}).Compose(context.Background(), request.New(0, "baseline"))
	require.Error(t, err)
	assert.True(t, IsInvalidRequest(err))
}

func TestCompose_PrefetchLoadsEachScenarioOnce(t *testing.T) {
	src := standardSource(t)
	req := request.New(2030, "baseline")
	req.StateBaseScenarios["tx"] = "high_growth"
	req.StateBaseScenarios["ca"] = "high_growth"
	req.FallbackOverrides[request.StateKey("ca", "bus")] = "electrified"
	req.FallbackOverrides[request.StateKey("tx", "bus")] = "electrified"
	req.BaselineOnlySubsectors["trucking"] = true

	res, err := newEngine(src, nil, Options{MaxParallelLoads: 2}).Compose(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.TablesLoaded)
	for _, s := range []string{"baseline", "high_growth", "electrified"} {
		assert.Equal(t, 1, src.Loads(2030, s), s)
	}
}

func TestCompose_WeatherYearFilter(t *testing.T) {
	src := source.NewMemory()
	tbl := mkTable(t, rowSpec{"bus", 0, 1, 1})
	require.NoError(t, tbl.Append(table.Row{
		Subsector: "bus",
		Timestamp: hour(0).AddDate(1, 0, 0),
		Values:    []float64{2, 2},
	}))
	src.Put(2030, "baseline", tbl)

	req := request.New(2030, "baseline")
	req.WeatherYear = 2013
	res, err := newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, column(t, res.Table, "tx", "bus"))

	req.WeatherYear = 1999
	_, err = newEngine(src, nil, Options{}).Compose(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, ErrCodeEmptyWeatherYear, CodeOf(err))
}

func TestCompose_RunMetadata(t *testing.T) {
	req := request.New(2030, "baseline")
	res, err := newEngine(standardSource(t), nil, Options{RunIDs: NewFixedGenerator("run-42")}).
		Compose(context.Background(), req)
	require.NoError(t, err)

	fp, err := req.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, "run-42", res.RunID)
	assert.Equal(t, fp, res.Fingerprint)
	assert.Equal(t, 4, res.Stats.Rows)
}

func TestParseAlignment(t *testing.T) {
	a, err := ParseAlignment("")
	require.NoError(t, err)
	assert.Equal(t, AlignPositional, a)

	a, err = ParseAlignment("keyed")
	require.NoError(t, err)
	assert.Equal(t, AlignKeyed, a)

	_, err = ParseAlignment("fuzzy")
	assert.Error(t, err)
}
