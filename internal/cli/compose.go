package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/loadmix/internal/compose"
	"github.com/roach88/loadmix/internal/export"
	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/store"
)

// ComposeOptions holds flags for the compose command.
type ComposeOptions struct {
	*RootOptions
	SourceFlags
	RequestPath string
	Out         string

	// RunIDs overrides the run id generator (for testing).
	// If nil, run ids are UUIDv7.
	RunIDs compose.RunIDGenerator

	// Now stamps run records (for testing). If nil, time.Now.
	Now func() time.Time
}

// ComposeSummary is the result of a composition written to a file.
type ComposeSummary struct {
	RunID        string              `json:"run_id"`
	Fingerprint  string              `json:"fingerprint"`
	Output       string              `json:"output"`
	Rows         int                 `json:"rows"`
	TablesLoaded int                 `json:"tables_loaded"`
	RowsSplit    int                 `json:"rows_split"`
	Diagnostics  request.Diagnostics `json:"diagnostics,omitempty"`
}

func (s ComposeSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Composed %d rows from %d tables into %s (run %s)", s.Rows, s.TablesLoaded, s.Output, s.RunID)
	if s.RowsSplit > 0 {
		fmt.Fprintf(&b, "\n  %d peak rows split into static/shed/shift", s.RowsSplit)
	}
	for _, d := range s.Diagnostics {
		fmt.Fprintf(&b, "\n  ! %s", d)
	}
	return b.String()
}

// NewComposeCommand creates the compose command.
func NewComposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ComposeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose one table from a request file",
		Long: `Compose a custom demand table from a YAML or JSON request file.

Without --out the CSV is written to stdout and diagnostics are logged to
stderr. With --out the CSV is written to the file (gzip-compressed when the
name ends in .gz) and a summary is printed in the selected format.

When a database is configured the run is recorded in the run log.

Example:
  loadmix compose --request req.yaml > custom_output.csv
  loadmix compose --request req.yaml --out custom_output.csv.gz --format json
  loadmix compose --request req.yaml --db ./loadmix.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.RequestPath, "request", "r", "", "path to request file (required)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output CSV path (default stdout)")
	addSourceFlags(cmd, &opts.SourceFlags)
	_ = cmd.MarkFlagRequired("request")

	return cmd
}

func runCompose(opts *ComposeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	req, diags, err := request.LoadFile(opts.RequestPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRequest, "failed to load request", err)
	}

	e, err := openEnv(opts.RootOptions, opts.SourceFlags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := e.Close(); closeErr != nil {
			e.logger.Error("error closing database", "error", closeErr)
		}
	}()

	eng, err := e.engine(nil, opts.RunIDs)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, cerr := eng.Compose(ctx, req)
	recordRun(ctx, e, opts, req, res, cerr)
	if cerr != nil {
		return formatter.Fail(ExitFailure, ErrCodeCompose, "composition failed", cerr)
	}

	diags = append(diags, res.Diagnostics...)
	for _, d := range diags {
		e.logger.Warn("diagnostic", "code", d.Code, "message", d.Message, "field", d.Field,
			"state", d.State, "subsector", d.Subsector)
	}

	if opts.Out == "" {
		if err := export.WriteCSV(cmd.OutOrStdout(), res.Table); err != nil {
			return WrapExitError(ExitFailure, "failed to write CSV", err)
		}
		e.logger.Info("composition written", "run_id", res.RunID, "rows", res.Stats.Rows)
		return nil
	}

	if err := export.WriteFile(opts.Out, res.Table); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCompose, "failed to write output", err)
	}
	return formatter.SuccessWithRun(res.RunID, ComposeSummary{
		RunID:        res.RunID,
		Fingerprint:  res.Fingerprint,
		Output:       opts.Out,
		Rows:         res.Stats.Rows,
		TablesLoaded: res.Stats.TablesLoaded,
		RowsSplit:    res.Stats.RowsSplit,
		Diagnostics:  diags,
	})
}

// recordRun appends the run to the log when a database is configured.
// Failures are logged; they never fail the composition.
func recordRun(ctx context.Context, e *env, opts *ComposeOptions, req *request.CompositionRequest, res *compose.Result, cerr error) {
	if e.store == nil {
		return
	}
	ids := opts.RunIDs
	if ids == nil {
		ids = compose.UUIDv7Generator{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	run, err := store.NewRun(req, res, cerr, ids, now())
	if err == nil {
		err = e.store.RecordRun(ctx, run)
	}
	if err != nil {
		e.logger.Error("failed to record run", "error", err)
		return
	}
	e.logger.Debug("run recorded", "run_id", run.ID, "status", run.Status)
}
