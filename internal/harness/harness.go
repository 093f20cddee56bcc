package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/loadmix/internal/compose"
	"github.com/roach88/loadmix/internal/export"
	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/shedshift"
	"github.com/roach88/loadmix/internal/source"
)

// RunIDPrefix prefixes the fixed run id each scenario composes under.
const RunIDPrefix = "harness-"

// Harness is the test execution engine.
// It runs one scenario against an in-memory source with a fixed run id.
type Harness struct {
	src    *source.Memory
	shed   *shedshift.Config
	opts   compose.Options
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario gets a fresh in-memory source, so scenarios never see each
// other's tables. A returned error means the scenario itself is broken
// (unreadable table, bad shed/shift entry); composition failures are
// recorded in the result and checked by assertions.
//
// Execution flow:
// 1. Parse and register the scenario tables
// 2. Build the engine from the shed/shift entries and options
// 3. Decode the request payload and compose
// 4. Export the composed table and evaluate assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return RunWithLogger(ctx, scenario, nil)
}

// RunWithLogger is Run with engine logging sent to logger. A nil logger
// discards output.
func RunWithLogger(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h, err := newHarness(scenario, logger)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	h.compose(ctx, scenario, result)

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func newHarness(scenario *Scenario, logger *slog.Logger) (*Harness, error) {
	srcOpts := source.Options{AttributeColumns: scenario.Attributes}
	mem := source.NewMemory()
	for i, ts := range scenario.Tables {
		var r io.Reader
		if ts.File != "" {
			data, err := os.ReadFile(ts.File)
			if err != nil {
				return nil, fmt.Errorf("tables[%d]: %w", i, err)
			}
			r = bytes.NewReader(data)
		} else {
			r = strings.NewReader(ts.CSV)
		}
		tbl, err := source.ReadCSV(r, srcOpts)
		if err != nil {
			return nil, fmt.Errorf("tables[%d] (%s): %w", i, ts.Scenario, err)
		}
		mem.Put(scenario.Year, ts.Scenario, tbl)
	}

	shed, err := shedshift.New(scenario.ShedShift)
	if err != nil {
		return nil, fmt.Errorf("shed_shift: %w", err)
	}

	align, err := compose.ParseAlignment(scenario.Options.FallbackAlignment)
	if err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}

	return &Harness{
		src:  mem,
		shed: shed,
		opts: compose.Options{
			BaselineScenario:  scenario.Options.BaselineScenario,
			PeakRows:          scenario.Options.PeakRows,
			FallbackAlignment: align,
			MaxParallelLoads:  1,
			Logger:            logger,
			RunIDs:            compose.NewFixedGenerator(RunIDPrefix + scenario.Name),
		},
		logger: logger,
	}, nil
}

// compose decodes the request and runs the engine, recording the outcome
// in result.
func (h *Harness) compose(ctx context.Context, scenario *Scenario, result *Result) {
	req, diags, err := request.FromPayload(scenario.Request)
	if err != nil {
		result.ErrorCode = string(compose.ErrCodeInvalidRequest)
		h.logger.Debug("scenario request rejected", "scenario", scenario.Name, "error", err)
		return
	}
	result.Diagnostics = append(result.Diagnostics, diags...)

	eng := compose.New(h.src, h.shed, h.opts)
	res, err := eng.Compose(ctx, req)
	if err != nil {
		result.ErrorCode = string(compose.CodeOf(err))
		if result.ErrorCode == "" {
			result.ErrorCode = err.Error()
		}
		h.logger.Debug("scenario composition failed", "scenario", scenario.Name, "error", err)
		return
	}
	result.Diagnostics = append(result.Diagnostics, res.Diagnostics...)
	result.Table = res.Table

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, res.Table); err != nil {
		result.AddError(fmt.Sprintf("export failed: %v", err))
		return
	}
	result.Output = buf.Bytes()
}
