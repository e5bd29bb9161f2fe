// Package env resolves {{...}} placeholders in scenario files.
//
// A placeholder names a scenario variable or a value captured from an
// earlier response ({{token}}, {{login.token}}), an environment variable
// ({{$HOME}}) or a builtin function call ({{uuid()}}). Unresolved
// placeholders are left in place. Variables can be read from .env files.
package env
