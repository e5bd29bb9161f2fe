package http

import (
	"errors"
	"fmt"
)

var (
	// ErrSizeLimitExceeded is wrapped by [SizeLimitError].
	ErrSizeLimitExceeded = errors.New("response body exceeds size limit")
	// ErrNoParser is returned when structured decoding or encoding is
	// requested and neither the client nor the request has a parser.
	ErrNoParser = errors.New("no parser configured")
	// ErrParse is wrapped by [ParseError].
	ErrParse = errors.New("parse failed")
	// ErrTimeout is joined with context.DeadlineExceeded when the per-call
	// timeout expires.
	ErrTimeout = errors.New("request timed out")
	// ErrUnexpectedStatus is wrapped by [StatusError].
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrBodyClosed is returned by text accessors after [Response.Close].
	ErrBodyClosed = errors.New("response body closed before it was read")
)

// SizeLimitError is returned by the bounded text accessors when the body
// reaches Limit bytes. The body is never truncated.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%v: body reached %d bytes, use TextLarge or raise the limit to read it", ErrSizeLimitExceeded, e.Limit)
}

func (e *SizeLimitError) Unwrap() error {
	return ErrSizeLimitExceeded
}

// ParseError is returned when a response body cannot be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v", ErrParse, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// StatusError is returned by [Response.EnsureSuccess] for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d from %s", ErrUnexpectedStatus, e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}
