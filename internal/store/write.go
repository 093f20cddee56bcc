package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/loadmix/internal/compose"
	"github.com/roach88/loadmix/internal/request"
	"github.com/roach88/loadmix/internal/table"
)

// ImportTable stores tbl under (tbl.Year, tbl.Scenario), replacing any
// earlier import of the same key. The write is atomic: readers see either
// the old table or the new one.
func (s *Store) ImportTable(ctx context.Context, tbl *table.Table, sourcePath string) error {
	if tbl.Year <= 0 || tbl.Scenario == "" {
		return fmt.Errorf("import table: year and scenario are required")
	}
	schema := tbl.Schema()
	attrCols, err := marshalStrings(schema.Attributes)
	if err != nil {
		return fmt.Errorf("import table: %w", err)
	}
	stateCols, err := marshalStrings(schema.States)
	if err != nil {
		return fmt.Errorf("import table: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import table: begin: %w", err)
	}
	defer tx.Rollback()

	// Rows go with the header through ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM scenario_tables WHERE year = ? AND scenario = ?`,
		tbl.Year, tbl.Scenario,
	); err != nil {
		return fmt.Errorf("import table: clear previous: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scenario_tables
		(year, scenario, timestamp_column, subsector_column, attribute_columns, state_columns, source_path, row_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tbl.Year,
		tbl.Scenario,
		schema.TimestampColumn,
		schema.SubsectorColumn,
		attrCols,
		stateCols,
		sourcePath,
		tbl.Len(),
	); err != nil {
		return fmt.Errorf("import table: insert header: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scenario_rows (year, scenario, seq, subsector, ts, attrs, vals)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("import table: prepare rows: %w", err)
	}
	defer stmt.Close()

	for i, r := range tbl.Rows {
		attrs, err := marshalStrings(r.Attrs)
		if err != nil {
			return fmt.Errorf("import table: row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			tbl.Year,
			tbl.Scenario,
			i,
			r.Subsector,
			r.Timestamp.UTC().UnixNano(),
			attrs,
			encodeValues(r.Values),
		); err != nil {
			return fmt.Errorf("import table: row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import table: commit: %w", err)
	}
	return nil
}

// Run status values.
const (
	RunOK    = "ok"
	RunError = "error"
)

// Run is one composition run log record.
type Run struct {
	Seq          int64               `json:"seq"`
	ID           string              `json:"id"`
	Fingerprint  string              `json:"fingerprint"`
	Year         int                 `json:"year"`
	Scenario     string              `json:"scenario"`
	Request      json.RawMessage     `json:"request"`
	Status       string              `json:"status"`
	ErrorCode    string              `json:"error_code,omitempty"`
	Error        string              `json:"error,omitempty"`
	Rows         int                 `json:"rows"`
	TablesLoaded int                 `json:"tables_loaded"`
	RowsSplit    int                 `json:"rows_split"`
	Diagnostics  request.Diagnostics `json:"diagnostics,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// NewRun builds a run record for a finished composition. On failure res is
// nil and the run gets a fresh id from ids.
func NewRun(req *request.CompositionRequest, res *compose.Result, err error, ids compose.RunIDGenerator, at time.Time) (Run, error) {
	payload, merr := json.Marshal(req.ToPayload())
	if merr != nil {
		return Run{}, fmt.Errorf("new run: %w", merr)
	}
	run := Run{
		Year:      req.Year,
		Scenario:  req.GlobalScenario,
		Request:   payload,
		CreatedAt: at,
	}

	if err != nil {
		fp, _ := req.Fingerprint()
		run.ID = ids.Generate()
		run.Fingerprint = fp
		run.Status = RunError
		run.ErrorCode = string(compose.CodeOf(err))
		run.Error = err.Error()
		return run, nil
	}

	run.ID = res.RunID
	run.Fingerprint = res.Fingerprint
	run.Status = RunOK
	run.Rows = res.Stats.Rows
	run.TablesLoaded = res.Stats.TablesLoaded
	run.RowsSplit = res.Stats.RowsSplit
	run.Diagnostics = res.Diagnostics
	return run, nil
}

// RecordRun appends run to the log.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - recording the same run
// twice keeps the first record.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	diags, err := marshalDiagnostics(run.Diagnostics)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	req := string(run.Request)
	if req == "" {
		req = "{}"
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO composition_runs
		(id, fingerprint, year, scenario, request, status, error_code, error, row_count, tables_loaded, rows_split, diagnostics, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Fingerprint,
		run.Year,
		run.Scenario,
		req,
		run.Status,
		run.ErrorCode,
		run.Error,
		run.Rows,
		run.TablesLoaded,
		run.RowsSplit,
		diags,
		formatTime(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
