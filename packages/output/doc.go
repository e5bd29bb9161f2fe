// Package output renders responses and scenario results.
//
// Scenario results can be written as:
//   - Console: colored terminal output
//   - JSON: machine-readable JSON
//   - JUnit: JUnit XML for CI systems
//   - TAP: Test Anything Protocol
//
// The JSON, JUnit and TAP formatters accumulate results and write them on
// Flush. The console formatter also prints single responses, with JSON
// bodies pretty-printed.
package output
