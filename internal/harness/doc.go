// Package harness provides conformance testing for scenario composition.
//
// The harness registers scenario tables in an in-memory source, runs one
// composition request through the engine, and validates the composed table
// as an executable contract test.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	year: 2030
//	attributes: [sector]
//	tables:
//	  - scenario: baseline
//	    csv: |
//	      weather_datetime,subsector,sector,tx,ca
//	      2012-01-01 00:00:00,trucking,transport,10,100
//	  - scenario: high_growth
//	    file: tables/2030_high_growth.csv
//	shed_shift:
//	  tx:
//	    trucking: {shed: 0.3, shift: 0.2}
//	options:
//	  peak_rows: 1
//	  fallback_alignment: keyed
//	request:
//	  year: 2030
//	  scenario: baseline
//	  fallback_scenarios: {"tx,trucking": high_growth}
//	assertions:
//	  - type: value
//	    subsector: trucking
//	    timestamp: "2012-01-01 00:00:00"
//	    row_type: static
//	    state: tx
//	    equals: 15
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - error: Composition fails with the given error code
//   - row_count: Exactly N rows match the filters
//   - value: The single matching row holds a value in a state column
//   - column_sum: A state column sums to a value over the matching rows
//   - diagnostic: Exactly N diagnostics carry a code
//
// Filters (subsector, row_type, timestamp) are optional and combine with AND.
//
// # Deterministic Testing
//
// Every scenario composes under the fixed run id "harness-{name}" with a
// single loader goroutine, so the exported CSV is byte-for-byte stable and
// can be compared against golden snapshots.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/fallback.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
