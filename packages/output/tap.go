package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/scenario"
)

// TAPFormatter formats scenario results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer  io.Writer
	results []tapResult
}

type tapResult struct {
	name     string
	passed   bool
	skipped  bool
	error    string
	failures []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *scenario.Result) {
	for _, r := range result.Steps {
		tr := tapResult{
			name:   result.Name + ": " + r.Name,
			passed: r.Passed(),
		}
		if r.Err != nil {
			tr.error = r.Err.Error()
		}
		for _, a := range r.Assertions {
			if !a.Passed {
				tr.failures = append(tr.failures, fmt.Sprintf(
					"%s %s: expected %v, got %v",
					a.Subject, a.Operator, a.Expected, a.Actual))
			}
		}
		f.results = append(f.results, tr)
	}

	for range result.Skipped {
		f.results = append(f.results, tapResult{name: result.Name, skipped: true})
	}
}

func (f *TAPFormatter) FormatError(err error) {
	f.results = append(f.results, tapResult{name: "load", error: err.Error()})
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", len(f.results))

	for i, r := range f.results {
		n := i + 1
		switch {
		case r.skipped:
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP bail\n", n, r.name)
		case r.error != "":
			fmt.Fprintf(f.writer, "not ok %d - %s\n", n, r.name)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(r.error))
			fmt.Fprintf(f.writer, "  severity: error\n")
			fmt.Fprintf(f.writer, "  ...\n")
		case r.passed:
			fmt.Fprintf(f.writer, "ok %d - %s\n", n, r.name)
		default:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", n, r.name)
			if len(r.failures) > 0 {
				fmt.Fprintf(f.writer, "  ---\n")
				fmt.Fprintf(f.writer, "  failures:\n")
				for _, a := range r.failures {
					fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(a))
				}
				fmt.Fprintf(f.writer, "  ...\n")
			}
		}
	}

	fmt.Fprintln(f.writer)
	return nil
}

func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return "\"" + s + "\""
	}
	return s
}
