package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/loadmix/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	SourceFlags
	Limit int
	ID    string
}

// RunList is the text/JSON view of recent runs.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

func (l RunList) String() string {
	if len(l.Runs) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	for i, r := range l.Runs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(formatRunLine(r))
	}
	return b.String()
}

// RunDetail is the view of a single run.
type RunDetail struct {
	store.Run
}

func (d RunDetail) String() string {
	var b strings.Builder
	b.WriteString(formatRunLine(d.Run))
	fmt.Fprintf(&b, "\n  fingerprint: %s", d.Fingerprint)
	fmt.Fprintf(&b, "\n  tables loaded: %d, rows split: %d", d.TablesLoaded, d.RowsSplit)
	if d.Error != "" {
		fmt.Fprintf(&b, "\n  error: %s", d.Error)
	}
	for _, diag := range d.Diagnostics {
		fmt.Fprintf(&b, "\n  ! %s", diag)
	}
	fmt.Fprintf(&b, "\n  request: %s", string(d.Request))
	return b.String()
}

func formatRunLine(r store.Run) string {
	mark := "✓"
	outcome := fmt.Sprintf("%d rows", r.Rows)
	if r.Status != "ok" {
		mark = "✗"
		outcome = r.ErrorCode
	}
	return fmt.Sprintf("%s %s  %s  %d/%s  %s",
		mark, r.ID, r.CreatedAt.UTC().Format(time.RFC3339), r.Year, r.Scenario, outcome)
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded composition runs",
		Long: `List composition runs recorded in the database, most recent first.

With --id, show one run in full including its request and diagnostics.

Example:
  loadmix runs --db ./loadmix.db --limit 10
  loadmix runs --db ./loadmix.db --id 0192b3c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show a single run")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database (overrides config)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	e, err := requireStore(opts.RootOptions, opts.SourceFlags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := e.Close(); closeErr != nil {
			e.logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.ID != "" {
		run, err := e.store.GetRun(ctx, opts.ID)
		if errors.Is(err, store.ErrRunNotFound) {
			return formatter.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.ID), err)
		}
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeStore, "failed to read run", err)
		}
		return formatter.SuccessWithRun(run.ID, RunDetail{Run: run})
	}

	runs, err := e.store.ListRuns(ctx, opts.Limit)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeStore, "failed to list runs", err)
	}
	return formatter.Success(RunList{Runs: runs})
}
