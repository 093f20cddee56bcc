package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/loadmix/internal/source"
	"github.com/roach88/loadmix/internal/table"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Load implements source.Source. A missing table returns an error matching
// source.ErrNotFound.
func (s *Store) Load(ctx context.Context, year int, scenario string) (*table.Table, error) {
	var (
		schema           table.Schema
		attrCols, stCols string
		rowCount         int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT timestamp_column, subsector_column, attribute_columns, state_columns, row_count
		FROM scenario_tables
		WHERE year = ? AND scenario = ?
	`, year, scenario).Scan(&schema.TimestampColumn, &schema.SubsectorColumn, &attrCols, &stCols, &rowCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, source.NotFound(year, scenario)
	}
	if err != nil {
		return nil, fmt.Errorf("load table header: %w", err)
	}

	if schema.Attributes, err = unmarshalStrings(attrCols); err != nil {
		return nil, fmt.Errorf("load table header: %w", err)
	}
	if schema.States, err = unmarshalStrings(stCols); err != nil {
		return nil, fmt.Errorf("load table header: %w", err)
	}
	tbl, err := table.New(schema)
	if err != nil {
		return nil, fmt.Errorf("load table header: %w", err)
	}
	tbl.Year = year
	tbl.Scenario = scenario
	tbl.Rows = make([]table.Row, 0, rowCount)

	rows, err := s.db.QueryContext(ctx, `
		SELECT subsector, ts, attrs, vals
		FROM scenario_rows
		WHERE year = ? AND scenario = ?
		ORDER BY seq ASC
	`, year, scenario)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	nStates := len(schema.States)
	for rows.Next() {
		var (
			r     table.Row
			ts    int64
			attrs string
			vals  []byte
		)
		if err := rows.Scan(&r.Subsector, &ts, &attrs, &vals); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		if r.Attrs, err = unmarshalStrings(attrs); err != nil {
			return nil, err
		}
		if r.Attrs == nil {
			r.Attrs = make([]string, len(schema.Attributes))
		}
		if r.Values, err = decodeValues(vals, nStates); err != nil {
			return nil, err
		}
		if err := tbl.Append(r); err != nil {
			return nil, fmt.Errorf("row %d: %w", tbl.Len(), err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tbl, nil
}

// TableInfo describes one imported scenario table.
type TableInfo struct {
	Year       int      `json:"year"`
	Scenario   string   `json:"scenario"`
	States     []string `json:"states"`
	Rows       int      `json:"rows"`
	SourcePath string   `json:"source_path,omitempty"`
}

// ListTables returns the imported tables ordered by year and scenario.
func (s *Store) ListTables(ctx context.Context) ([]TableInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, scenario, state_columns, row_count, source_path
		FROM scenario_tables
		ORDER BY year ASC, scenario COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	out := []TableInfo{}
	for rows.Next() {
		var (
			info   TableInfo
			states string
		)
		if err := rows.Scan(&info.Year, &info.Scenario, &states, &info.Rows, &info.SourcePath); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if info.States, err = unmarshalStrings(states); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return out, nil
}

const runColumns = `seq, id, fingerprint, year, scenario, request, status, error_code, error,
	row_count, tables_loaded, rows_split, diagnostics, created_at`

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM composition_runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// GetRun returns the run with the given id, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM composition_runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run        Run
		req, diags string
		createdAt  string
	)
	err := sc.Scan(
		&run.Seq, &run.ID, &run.Fingerprint, &run.Year, &run.Scenario, &req,
		&run.Status, &run.ErrorCode, &run.Error,
		&run.Rows, &run.TablesLoaded, &run.RowsSplit, &diags, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Request = []byte(req)
	if run.Diagnostics, err = unmarshalDiagnostics(diags); err != nil {
		return Run{}, err
	}
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return Run{}, err
	}
	return run, nil
}
