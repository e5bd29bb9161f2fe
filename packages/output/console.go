package output

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
	"github.com/abdul-hamid-achik/nicehttp/packages/scenario"
	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "<missing>"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case map[string]string:
		return fmt.Sprintf("{map with %d entries}", len(val))
	case map[string][]string:
		return fmt.Sprintf("{headers with %d entries}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
	include bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithInclude prints the status line and headers before response bodies.
func WithInclude(include bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.include = include
	}
}

func (f *ConsoleFormatter) FormatResult(result *scenario.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+result.Name))

	for _, r := range result.Steps {
		if r.Err != nil {
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("x"), r.Name, red(fmt.Sprintf("(%v)", r.Err)))
			continue
		}

		symbol := green("✓")
		if !r.Passed() {
			symbol = red("✗")
		}

		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, r.Name, cyan(fmt.Sprintf("(%d, %dms)", r.StatusCode, r.Duration.Milliseconds())))

		if f.verbose {
			fmt.Fprintf(f.writer, "    %s %s\n", r.Method, r.URL)
			for _, name := range slices.Sorted(maps.Keys(r.Captured)) {
				fmt.Fprintf(f.writer, "    %s = %s\n", name, formatValue(r.Captured[name], 100))
			}
		}

		for _, a := range r.Assertions {
			if a.Passed {
				continue
			}
			fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), a.Subject, a.Operator)
			fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
			fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
			if a.Message != "" {
				fmt.Fprintf(f.writer, "      %s\n", a.Message)
			}
		}
	}

	fmt.Fprintf(f.writer, "\nSteps: ")
	if n := result.Passed(); n > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", n)))
	}
	if n := result.Failed(); n > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", n)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(result.Steps)+result.Skipped)
	fmt.Fprintf(f.writer, "Time:  %dms\n\n", result.Duration.Milliseconds())
}

// FormatResponse prints a response body, pretty-printing JSON. With
// WithInclude the status line and headers come first.
func (f *ConsoleFormatter) FormatResponse(resp *nicehttp.Response, body string) {
	if f.include {
		f.formatHead(resp)
	}

	if body == "" {
		return
	}
	if gjson.Valid(body) {
		out := pretty.Pretty([]byte(body))
		if !color.NoColor {
			out = pretty.Color(out, nil)
		}
		_, _ = f.writer.Write(out)
		return
	}

	fmt.Fprint(f.writer, body)
	if !strings.HasSuffix(body, "\n") {
		fmt.Fprintln(f.writer)
	}
}

func (f *ConsoleFormatter) formatHead(resp *nicehttp.Response) {
	status := color.New(color.FgGreen, color.Bold)
	switch {
	case resp.StatusCode >= 500:
		status = color.New(color.FgRed, color.Bold)
	case resp.StatusCode >= 400:
		status = color.New(color.FgYellow, color.Bold)
	}
	key := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(f.writer, "%s %s\n", status.Sprint(resp.Status), color.New(color.Faint).Sprintf("(%dms)", resp.Duration.Milliseconds()))
	for _, name := range slices.Sorted(maps.Keys(resp.Header)) {
		for _, v := range resp.Header[name] {
			fmt.Fprintf(f.writer, "%s: %s\n", key(name), v)
		}
	}
	fmt.Fprintln(f.writer)
}

// FormatLines prints one line per value, used for query and select output.
func (f *ConsoleFormatter) FormatLines(values []string) {
	for _, v := range values {
		fmt.Fprintln(f.writer, v)
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("nicehttp"), version)
}
