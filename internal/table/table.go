package table

import (
	"fmt"
	"time"
)

// RowType tags how a row was produced by the shed/shift decomposer.
type RowType string

const (
	RowOriginal RowType = "original"
	RowStatic   RowType = "static"
	RowShed     RowType = "shed"
	RowShift    RowType = "shift"
)

// Valid reports whether t is one of the known row types.
func (t RowType) Valid() bool {
	switch t {
	case RowOriginal, RowStatic, RowShed, RowShift:
		return true
	}
	return false
}

// Key identifies a row by subsector and instant.
// The instant is stored as Unix nanoseconds so keys compare equal regardless
// of the time.Location attached to the parsed timestamp.
type Key struct {
	Subsector string
	At        int64
}

// Row is one observation.
//
// Attrs is aligned with Schema.Attributes and Values with Schema.States.
type Row struct {
	Subsector string
	Timestamp time.Time
	Attrs     []string
	Values    []float64
	Type      RowType
}

// Key returns the (subsector, timestamp) identity of the row.
func (r Row) Key() Key {
	return Key{Subsector: r.Subsector, At: r.Timestamp.UnixNano()}
}

// WeatherYear is the calendar year of the row timestamp.
func (r Row) WeatherYear() int {
	return r.Timestamp.Year()
}

// Clone returns a deep copy of the row. An empty Type becomes RowOriginal.
func (r Row) Clone() Row {
	out := r
	out.Attrs = append([]string(nil), r.Attrs...)
	out.Values = append([]float64(nil), r.Values...)
	if out.Type == "" {
		out.Type = RowOriginal
	}
	return out
}

// Schema names the columns of a table.
type Schema struct {
	TimestampColumn string
	SubsectorColumn string
	Attributes      []string
	States          []string
}

// Table is an ordered set of rows sharing one schema.
type Table struct {
	// Year and Scenario identify where the table came from.
	Year     int
	Scenario string

	Rows []Row

	schema   Schema
	stateIdx map[string]int
}

// New builds an empty table for schema.
//
// State names are normalized with NormalizeState. New fails on duplicate
// columns, on the all-states sentinel and on derived column names.
func New(schema Schema) (*Table, error) {
	if schema.TimestampColumn == "" || schema.SubsectorColumn == "" {
		return nil, fmt.Errorf("schema requires timestamp and subsector columns")
	}

	seen := map[string]bool{
		NormalizeState(schema.TimestampColumn): true,
		NormalizeState(schema.SubsectorColumn): true,
	}
	checkColumn := func(kind, name string) error {
		n := NormalizeState(name)
		switch {
		case n == "":
			return fmt.Errorf("empty %s column name", kind)
		case IsAllStates(n):
			return fmt.Errorf("%s column %q uses the reserved all-states name", kind, name)
		case IsDerivedColumn(n):
			return fmt.Errorf("%s column %q is a derived column", kind, name)
		case seen[n]:
			return fmt.Errorf("duplicate column %q", name)
		}
		seen[n] = true
		return nil
	}

	out := Schema{
		TimestampColumn: schema.TimestampColumn,
		SubsectorColumn: schema.SubsectorColumn,
		Attributes:      make([]string, 0, len(schema.Attributes)),
		States:          make([]string, 0, len(schema.States)),
	}
	for _, a := range schema.Attributes {
		if err := checkColumn("attribute", a); err != nil {
			return nil, err
		}
		out.Attributes = append(out.Attributes, NormalizeName(a))
	}

	idx := make(map[string]int, len(schema.States))
	for _, s := range schema.States {
		if err := checkColumn("state", s); err != nil {
			return nil, err
		}
		n := NormalizeState(s)
		idx[n] = len(out.States)
		out.States = append(out.States, n)
	}

	return &Table{schema: out, stateIdx: idx}, nil
}

// MustNew is New for statically known schemas. It panics on error.
func MustNew(schema Schema) *Table {
	t, err := New(schema)
	if err != nil {
		panic(err)
	}
	return t
}

// Schema returns a copy of the table schema.
func (t *Table) Schema() Schema {
	s := t.schema
	s.Attributes = append([]string(nil), t.schema.Attributes...)
	s.States = append([]string(nil), t.schema.States...)
	return s
}

// States returns the state column names in load order.
func (t *Table) States() []string {
	return append([]string(nil), t.schema.States...)
}

// StateIndex returns the position of state in Row.Values.
// The lookup is case-insensitive; the all-states sentinel never matches.
func (t *Table) StateIndex(state string) (int, bool) {
	if IsAllStates(state) {
		return 0, false
	}
	i, ok := t.stateIdx[NormalizeState(state)]
	return i, ok
}

// HasState reports whether state is a column of the table.
func (t *Table) HasState(state string) bool {
	_, ok := t.StateIndex(state)
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Append adds a row after checking it against the schema.
func (t *Table) Append(r Row) error {
	if len(r.Values) != len(t.schema.States) {
		return fmt.Errorf("row has %d values, schema has %d states", len(r.Values), len(t.schema.States))
	}
	if len(r.Attrs) != len(t.schema.Attributes) {
		return fmt.Errorf("row has %d attributes, schema has %d", len(r.Attrs), len(t.schema.Attributes))
	}
	if r.Type == "" {
		r.Type = RowOriginal
	}
	if !r.Type.Valid() {
		return fmt.Errorf("invalid row type %q", r.Type)
	}
	t.Rows = append(t.Rows, r)
	return nil
}

// Clone returns a deep copy of the table. The copy never aliases the
// receiver's row slices.
func (t *Table) Clone() *Table {
	out := &Table{
		Year:     t.Year,
		Scenario: t.Scenario,
		schema:   t.Schema(),
		stateIdx: make(map[string]int, len(t.stateIdx)),
		Rows:     make([]Row, len(t.Rows)),
	}
	for k, v := range t.stateIdx {
		out.stateIdx[k] = v
	}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// SameColumns reports whether other has the same state and attribute columns
// in the same order.
func (t *Table) SameColumns(other *Table) bool {
	if len(t.schema.States) != len(other.schema.States) ||
		len(t.schema.Attributes) != len(other.schema.Attributes) {
		return false
	}
	for i, s := range t.schema.States {
		if other.schema.States[i] != s {
			return false
		}
	}
	for i, a := range t.schema.Attributes {
		if other.schema.Attributes[i] != a {
			return false
		}
	}
	return true
}

// SubsectorRows returns the rows of subsector in table order. The returned
// rows share storage with the table.
func (t *Table) SubsectorRows(subsector string) []Row {
	var out []Row
	for _, r := range t.Rows {
		if r.Subsector == subsector {
			out = append(out, r)
		}
	}
	return out
}

// SubsectorIndexes returns the positions of subsector's rows in table order.
func (t *Table) SubsectorIndexes(subsector string) []int {
	var out []int
	for i, r := range t.Rows {
		if r.Subsector == subsector {
			out = append(out, i)
		}
	}
	return out
}

// RemoveSubsector deletes every row of subsector, preserving the order of
// the remaining rows, and returns the number removed.
func (t *Table) RemoveSubsector(subsector string) int {
	kept := t.Rows[:0]
	removed := 0
	for _, r := range t.Rows {
		if r.Subsector == subsector {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	// Clear the tail so dropped rows can be collected.
	for i := len(kept); i < len(t.Rows); i++ {
		t.Rows[i] = Row{}
	}
	t.Rows = kept
	return removed
}

// Subsectors returns the distinct subsectors in first-seen order.
func (t *Table) Subsectors() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Rows {
		if !seen[r.Subsector] {
			seen[r.Subsector] = true
			out = append(out, r.Subsector)
		}
	}
	return out
}

// FilterWeatherYear returns a table holding only rows whose timestamp falls
// in year. Rows are shallow copies; the result must be treated as read-only
// like its source.
func (t *Table) FilterWeatherYear(year int) *Table {
	out := &Table{
		Year:     t.Year,
		Scenario: t.Scenario,
		schema:   t.schema,
		stateIdx: t.stateIdx,
	}
	for _, r := range t.Rows {
		if r.WeatherYear() == year {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}
