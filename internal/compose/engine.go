package compose

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/shedshift"
	"github.com/roach88/loadmix/internal/source"
	"github.com/roach88/loadmix/internal/table"
)

// DefaultBaselineScenario supplies baseline-only subsectors.
const DefaultBaselineScenario = "baseline"

// DefaultMaxParallelLoads bounds concurrent table loads during prefetch.
const DefaultMaxParallelLoads = 4

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	BaselineScenario  string
	PeakRows          int
	FallbackAlignment Alignment
	MaxParallelLoads  int

	Logger   *slog.Logger
	Observer Observer
	RunIDs   RunIDGenerator
}

func (o Options) withDefaults() Options {
	if o.BaselineScenario == "" {
		o.BaselineScenario = DefaultBaselineScenario
	}
	if o.PeakRows <= 0 {
		o.PeakRows = DefaultPeakRows
	}
	if o.FallbackAlignment == "" {
		o.FallbackAlignment = AlignPositional
	}
	if o.MaxParallelLoads <= 0 {
		o.MaxParallelLoads = DefaultMaxParallelLoads
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	if o.RunIDs == nil {
		o.RunIDs = UUIDv7Generator{}
	}
	return o
}

// Engine composes tables from a Source.
//
// Thread-safety: Compose may be called concurrently. Each call owns its
// table cache and composed table; the Source, shed/shift config and options
// are shared read-only.
type Engine struct {
	src  source.Source
	shed *shedshift.Config
	opts Options
}

// New creates an engine. A nil shed/shift config disables decomposition for
// every state.
func New(src source.Source, shed *shedshift.Config, opts Options) *Engine {
	if shed == nil {
		shed = shedshift.Empty()
	}
	return &Engine{src: src, shed: shed, opts: opts.withDefaults()}
}

// Options returns the effective engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// Stats describes one composition.
type Stats struct {
	TablesLoaded int            `json:"tables_loaded"`
	Rows         int            `json:"rows"`
	PeakRows     map[string]int `json:"peak_rows,omitempty"`
	RowsSplit    int            `json:"rows_split"`
	Elapsed      time.Duration  `json:"elapsed"`
}

// Result is a composed table with its run metadata.
type Result struct {
	RunID       string
	Fingerprint string
	Request     *request.CompositionRequest
	Table       *table.Table
	Diagnostics request.Diagnostics
	Stats       Stats
}

// Compose runs the full pipeline for req: resolve scenario layers, apply
// custom scaling, then decompose peaks. All tables the request needs are
// loaded before the first layer runs. On error no table is returned.
func (e *Engine) Compose(ctx context.Context, req *request.CompositionRequest) (*Result, error) {
	start := time.Now()
	logger := e.opts.Logger

	if err := req.Validate(); err != nil {
		return nil, &Error{Code: ErrCodeInvalidRequest, Message: "request failed validation", Err: err}
	}
	fp, err := req.Fingerprint()
	if err != nil {
		return nil, &Error{Code: ErrCodeInvalidRequest, Message: "request cannot be fingerprinted", Err: err}
	}
	runID := e.opts.RunIDs.Generate()
	logger = logger.With("run_id", runID)
	logger.Info("composition started", "year", req.Year, "scenario", req.GlobalScenario, "fingerprint", fp)

	cache := newTableCache(e.src, req.Year, req.WeatherYear, e.opts.Observer)
	scenarios := req.Scenarios(e.opts.BaselineScenario)
	if err := cache.prefetch(ctx, scenarios, e.opts.MaxParallelLoads); err != nil {
		logger.Warn("composition failed while loading tables", "error", err)
		return nil, err
	}
	logger.Debug("tables prefetched", "scenarios", scenarios)

	rs := &resolver{
		req:       req,
		cache:     cache,
		baseline:  e.opts.BaselineScenario,
		alignment: e.opts.FallbackAlignment,
		logger:    logger,
	}
	composed, err := rs.resolve(ctx)
	if err != nil {
		logger.Warn("composition failed", "error", err)
		return nil, err
	}

	var diags request.Diagnostics
	diags = append(diags, scale(composed, req, logger)...)

	d := &decomposer{cfg: e.shed, peakRows: e.opts.PeakRows, logger: logger}
	dstats, ddiags := d.apply(composed, req.EnabledShedShiftStates())
	diags = append(diags, ddiags...)

	res := &Result{
		RunID:       runID,
		Fingerprint: fp,
		Request:     req,
		Table:       composed,
		Diagnostics: diags,
		Stats: Stats{
			TablesLoaded: cache.len(),
			Rows:         composed.Len(),
			PeakRows:     dstats.Selected,
			RowsSplit:    dstats.Split,
			Elapsed:      time.Since(start),
		},
	}
	logger.Info("composition finished", "rows", res.Stats.Rows, "tables", res.Stats.TablesLoaded,
		"split", res.Stats.RowsSplit, "diagnostics", len(diags), "elapsed", res.Stats.Elapsed)
	return res, nil
}
