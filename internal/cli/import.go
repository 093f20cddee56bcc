package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/loadmix/internal/source"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	SourceFlags
}

// ImportedTable describes one imported scenario file.
type ImportedTable struct {
	Year     int    `json:"year"`
	Scenario string `json:"scenario"`
	Rows     int    `json:"rows"`
	Path     string `json:"path"`
}

// ImportResult is the outcome of an import.
type ImportResult struct {
	Tables []ImportedTable `json:"tables"`
}

func (r ImportResult) String() string {
	if len(r.Tables) == 0 {
		return "No scenario files found."
	}
	var b strings.Builder
	for _, t := range r.Tables {
		fmt.Fprintf(&b, "  %d_%s: %d rows\n", t.Year, t.Scenario, t.Rows)
	}
	fmt.Fprintf(&b, "✓ Imported %d table(s)", len(r.Tables))
	return b.String()
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import scenario files into the database",
		Long: `Import every {year}_{scenario}.csv.gz (or .csv) file in a directory into the
SQLite database. A table that already exists is replaced.

Example:
  loadmix import ./files --db ./loadmix.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database (overrides config)")

	return cmd
}

func runImport(opts *ImportOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("directory not found: %s", dir), err)
	}

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

	files := source.NewDir(dir, e.cfg.SourceOptions(), e.logger)
	entries, err := files.List()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to list scenario files", err)
	}

	result := ImportResult{Tables: make([]ImportedTable, 0, len(entries))}
	for _, entry := range entries {
		formatter.VerboseLog("Importing %s", entry.Path)
		tbl, err := source.ReadFile(entry.Path, e.cfg.SourceOptions())
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeRequest, "failed to read scenario file", err)
		}
		tbl.Year = entry.Year
		tbl.Scenario = entry.Scenario
		if err := e.store.ImportTable(ctx, tbl, entry.Path); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeStore, "failed to import table", err)
		}
		e.logger.Debug("table imported", "year", entry.Year, "scenario", entry.Scenario, "rows", tbl.Len())
		result.Tables = append(result.Tables, ImportedTable{
			Year:     entry.Year,
			Scenario: entry.Scenario,
			Rows:     tbl.Len(),
			Path:     entry.Path,
		})
	}

	return formatter.Success(result)
}
