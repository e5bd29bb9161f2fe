// Package assertions checks responses against one-line expectations.
//
// An expectation reads "<subject> <operator> [value]":
//   - status == 200
//   - header Content-Type contains application/json
//   - body.user.name == ada
//   - body.items length 3
//   - cookie session exists
//   - body schema ./user.schema.json
//
// Values are decoded as YAML scalars or flow collections, so 200 is a
// number, true a boolean and [1, 2] a list.
package assertions
