// Package compose implements the scenario composition engine.
//
// Compose turns a CompositionRequest into one table by layering scenario
// tables in a fixed precedence order, later layers winning:
//
//  1. Global base: the global scenario's table, deep copied.
//  2. State base: per-state scenario columns, matched by (subsector, timestamp).
//  3. Fallback: per-(state, subsector) scenarios. An all-states key replaces
//     the subsector's rows outright; a single-state key replaces one column,
//     positionally by default (see Alignment).
//  4. Baseline-only: listed subsectors are restored from the baseline
//     scenario, overriding everything above. They are also exempt from
//     fallbacks and scaling.
//
// The composed table is then scaled by the custom factors and, for states
// with shed/shift enabled, its peak rows are split into static, shed and
// shift rows.
//
// # Failure
//
// All tables a request needs are loaded up front through a request-scoped
// cache. A missing scenario fails the request before any layer runs, and no
// partial table is ever returned. Recoverable conditions are reported as
// request.Diagnostics on the Result.
//
// # Determinism
//
// Overrides are applied in sorted key order (all-states keys first), so the
// same request over the same tables always yields the same rows in the same
// order.
package compose
