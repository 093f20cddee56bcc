// Package table defines the in-memory tabular model shared by every stage of
// scenario composition.
//
// A Table is an ordered sequence of Rows plus an explicit Schema. The schema
// names the timestamp and subsector identity columns, any further attribute
// columns, and the state columns that carry one demand value per row. State
// columns are fixed when a table is built and are never inferred from column
// position afterwards.
//
// # Ownership
//
// Tables produced by a source are read-only. Stages that need to mutate a
// table work on a deep copy obtained with Table.Clone.
//
// # Identity
//
// A row is identified by (subsector, timestamp); see Key. The same key may
// occur more than once when attribute columns split a subsector further.
package table
