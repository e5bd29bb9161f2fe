// Package bench measures request latency against a single endpoint.
//
// A Runner spreads a fixed number of calls over a pool of workers,
// optionally paced by a shared rate limiter, and records each outcome in
// an HDR histogram. Thresholds such as "p95<200ms,errors<1%" turn the
// resulting Summary into a pass/fail verdict.
package bench
