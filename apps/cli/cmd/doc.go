// Package cmd implements the nicehttp CLI commands using Cobra.
//
// Available commands:
//   - request, get, post, put, delete, head, patch, options: send one request
//   - run: run YAML scenarios through a cookie session
//   - bench: benchmark an endpoint with latency percentiles and thresholds
//   - validate: check scenario files without running them
//   - list: show the steps of scenario files
//   - init: write a starter config and scenario
//   - version: show version information
//
// Defaults come from nicehttp.yaml (see package config); flags override
// them per invocation.
package cmd
