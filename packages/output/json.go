package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/scenario"
)

// JSONOutput is the document written by JSONFormatter.
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Steps    []JSONStep  `json:"steps"`
	Errors   []string    `json:"errors,omitempty"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type JSONStep struct {
	Scenario   string            `json:"scenario"`
	Name       string            `json:"name"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	StatusCode int               `json:"statusCode,omitempty"`
	Passed     bool              `json:"passed"`
	Duration   float64           `json:"duration"`
	Error      string            `json:"error,omitempty"`
	Assertions []JSONAssertion   `json:"assertions,omitempty"`
	Captured   map[string]string `json:"captured,omitempty"`
}

type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter formats scenario results as JSON
type JSONFormatter struct {
	writer  io.Writer
	steps   []JSONStep
	errors  []string
	skipped int
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		steps:  make([]JSONStep, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *scenario.Result) {
	f.skipped += result.Skipped

	for _, r := range result.Steps {
		step := JSONStep{
			Scenario:   result.Name,
			Name:       r.Name,
			Method:     r.Method,
			URL:        r.URL,
			StatusCode: r.StatusCode,
			Passed:     r.Passed(),
			Duration:   float64(r.Duration.Milliseconds()),
			Captured:   r.Captured,
		}

		if r.Err != nil {
			step.Error = r.Err.Error()
		}

		for _, a := range r.Assertions {
			step.Assertions = append(step.Assertions, JSONAssertion{
				Subject:  a.Subject,
				Operator: a.Operator,
				Expected: a.Expected,
				Actual:   a.Actual,
				Passed:   a.Passed,
				Message:  a.Message,
			})
		}

		f.steps = append(f.steps, step)
	}
}

// FormatError records errors that prevented a scenario from running.
func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed int
	for _, s := range f.steps {
		if s.Passed {
			passed++
		} else {
			failed++
		}
	}

	out := JSONOutput{
		Summary: JSONSummary{
			Total:   len(f.steps) + f.skipped,
			Passed:  passed,
			Failed:  failed,
			Skipped: f.skipped,
		},
		Steps:    f.steps,
		Errors:   f.errors,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
