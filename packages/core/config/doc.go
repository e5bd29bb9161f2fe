// Package config handles configuration loading and management for nicehttp.
//
// It provides functionality for:
//   - Loading configuration from nicehttp.yaml, .nicehttp.yaml or .nicehttp.json
//   - Default configuration values and tag-based validation
//   - Translating a configuration into http client options
package config
