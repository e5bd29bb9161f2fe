// Package builtin holds the template functions available in scenario files.
//
// Functions are called as {{name(args)}}:
//   - uuid(): random UUID v4
//   - now(): current UTC time, RFC 3339
//   - timestamp(), timestampMs(): Unix time in seconds or milliseconds
//   - date(layout): current UTC date, 2006-01-02 by default
//   - random(min, max): random integer in [min, max]
//   - randomString(n): random alphanumeric string
//   - base64(s), base64Decode(s), urlEncode(s), sha256(s)
package builtin
