package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/source"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	SourceFlags
	RequestPath string
}

// ValidationProblem is one reason a request would not compose as written.
type ValidationProblem struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
	Scenario string `json:"scenario,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                `json:"valid"`
	Year      int                 `json:"year"`
	Scenarios []string            `json:"scenarios"`
	Problems  []ValidationProblem `json:"problems,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	if r.Valid {
		fmt.Fprintf(&b, "✓ Request valid (%d: %s)", r.Year, strings.Join(r.Scenarios, ", "))
	} else {
		b.WriteString("✗ Validation failed\n")
		for _, p := range r.Problems {
			fmt.Fprintf(&b, "\n  %s: %s", p.Code, p.Message)
			if p.Field != "" {
				fmt.Fprintf(&b, " (%s)", p.Field)
			}
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\n  ! %s", w)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a request without composing",
		Long: `Validate a composition request without composing it.

Reports entries that would be dropped (malformed keys, invalid factors,
empty scenarios) and every scenario table the request reads that the
configured source does not have. Faster than compose for checking a request
before submitting it.

Exit codes:
  0 - Request valid
  1 - Request would drop entries or fail to compose
  2 - Command error (unreadable request file, bad config, etc.)

Example:
  loadmix validate --request req.yaml --data-dir ./files`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.RequestPath, "request", "r", "", "path to request file (required)")
	addSourceFlags(cmd, &opts.SourceFlags)
	_ = cmd.MarkFlagRequired("request")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := ValidationResult{
		Year:      req.Year,
		Scenarios: req.Scenarios(e.cfg.BaselineScenario),
	}
	for _, d := range diags {
		result.Problems = append(result.Problems, ValidationProblem{
			Code:    string(d.Code),
			Message: d.Message,
			Field:   d.Field,
		})
	}
	result.Problems = append(result.Problems, checkScenarios(ctx, e, formatter, req.Year, result.Scenarios)...)

	shed, err := e.shedShift()
	if err != nil {
		return err
	}
	for _, entry := range shed.Overcommitted() {
		result.Warnings = append(result.Warnings, fmt.Sprintf("shed + shift exceeds 1 for %s; static rows will be clamped", entry))
	}

	result.Valid = len(result.Problems) == 0
	if result.Valid {
		return formatter.Success(result)
	}

	if formatter.Format == "json" {
		first := result.Problems[0]
		if err := encodeResponse(formatter, CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeInvalid, Message: first.Message, Details: first.Code},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, result)
	}
	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d problem(s)", len(result.Problems)))
}

// checkScenarios loads every scenario the request reads and reports the
// ones the source cannot serve.
func checkScenarios(ctx context.Context, e *env, formatter *OutputFormatter, year int, scenarios []string) []ValidationProblem {
	var problems []ValidationProblem
	for _, s := range scenarios {
		formatter.VerboseLog("Checking %d_%s", year, s)
		if err := source.ValidateScenarioID(s); err != nil {
			problems = append(problems, ValidationProblem{Code: "INVALID_SCENARIO", Message: err.Error(), Scenario: s})
			continue
		}
		if _, err := e.src.Load(ctx, year, s); err != nil {
			code := "LOAD_FAILED"
			if source.IsNotFound(err) {
				code = "NOT_FOUND"
			}
			problems = append(problems, ValidationProblem{Code: code, Message: err.Error(), Scenario: s})
		}
	}
	return problems
}
