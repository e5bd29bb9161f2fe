package cmd

import (
	"errors"
	"net"

	"github.com/abdul-hamid-achik/nicehttp/packages/core/config"
	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
)

// Exit codes for the nicehttp CLI
const (
	// ExitSuccess indicates success
	ExitSuccess = 0

	// ExitTestFailure indicates failed expectations, thresholds or --fail
	ExitTestFailure = 1

	// ExitParseError indicates a scenario file could not be parsed
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var (
		ee *exitError
		fe config.FieldErrors
		ne net.Error
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ee):
		return ee.code
	case errors.As(err, &fe):
		return ExitConfigError
	case errors.Is(err, nicehttp.ErrTimeout), errors.As(err, &ne):
		return ExitNetworkError
	}
	return ExitTestFailure
}
