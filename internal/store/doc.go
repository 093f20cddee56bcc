// Package store provides SQLite-backed storage for loadmix.
//
// It holds two kinds of data:
//   - Scenario tables imported from CSV files. The store implements
//     source.Source, so the engine can compose from a database instead of a
//     data directory.
//   - The run log: one record per composition, with the request, its
//     fingerprint and the diagnostics it produced.
//
// # Ordering
//
// Scenario rows are read back in import order (ORDER BY seq). Runs are
// listed newest first by insertion sequence, never by wall-clock time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Row cascade on re-import
package store
