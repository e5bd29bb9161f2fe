package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Reporter prints benchmark output.
type Reporter struct {
	writer  io.Writer
	noColor bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
}

// ReporterOption configures the reporter.
type ReporterOption func(*Reporter)

// WithWriter sets the output writer.
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output.
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// NewReporter creates a reporter writing to stdout by default.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		writer: os.Stdout,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.green = r.newColor(color.FgGreen)
	r.red = r.newColor(color.FgRed)
	r.yellow = r.newColor(color.FgYellow)
	r.cyan = r.newColor(color.FgCyan)
	r.bold = r.newColor(color.Bold)

	return r
}

func (r *Reporter) newColor(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if r.noColor {
		c.DisableColor()
	}
	return c
}

// Header prints the run description.
func (r *Reporter) Header(method, url string, cfg *Config) {
	r.bold.Fprintf(r.writer, "Benchmarking %s %s\n", method, url)
	fmt.Fprintf(r.writer, "Requests: %d | Concurrency: %d", cfg.Requests, cfg.Concurrency)
	if cfg.Rate > 0 {
		fmt.Fprintf(r.writer, " | Rate: %s/s", formatFloat(cfg.Rate))
	}
	fmt.Fprintln(r.writer)
	fmt.Fprintln(r.writer)
}

// Progress overwrites the current line with a progress snapshot.
func (r *Reporter) Progress(stats CurrentStats, total int) {
	fmt.Fprintf(r.writer, "\r\033[K")
	r.cyan.Fprintf(r.writer, "%s/%s", formatNumber(stats.Total), formatNumber(int64(total)))
	fmt.Fprintf(r.writer, " done | errors: %s | in flight: %d | p95: %s | %s",
		formatNumber(stats.Errors), stats.InFlight, formatLatency(stats.P95), formatDuration(stats.Elapsed))
}

// ClearProgress erases the progress line.
func (r *Reporter) ClearProgress() {
	fmt.Fprint(r.writer, "\r\033[K")
}

// Summary prints the final summary and the threshold verdicts.
func (r *Reporter) Summary(summary *Summary, results []ThresholdResult) {
	r.bold.Fprintln(r.writer, "BENCHMARK SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(summary.Duration))
	fmt.Fprintf(r.writer, "Total:      ")
	r.bold.Fprintf(r.writer, "%s", formatNumber(summary.Total))
	fmt.Fprintf(r.writer, " requests (%.1f req/s)\n", summary.RPS)

	fmt.Fprintf(r.writer, "Success:    ")
	r.green.Fprintf(r.writer, "%s", formatNumber(summary.SuccessCount))
	fmt.Fprintf(r.writer, " (%.1f%%)\n", summary.SuccessRate*100)

	fmt.Fprintf(r.writer, "Failed:     ")
	if summary.ErrorCount > 0 {
		r.red.Fprintf(r.writer, "%s", formatNumber(summary.ErrorCount))
	} else {
		fmt.Fprintf(r.writer, "%s", formatNumber(summary.ErrorCount))
	}
	fmt.Fprintf(r.writer, " (%.1f%%)\n", summary.ErrorRate*100)

	if summary.TimeoutCount > 0 {
		fmt.Fprintf(r.writer, "Timeouts:   ")
		r.yellow.Fprintf(r.writer, "%s\n", formatNumber(summary.TimeoutCount))
	}

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY (ms)")
	fmt.Fprintf(r.writer, "  p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(summary.P50),
		formatLatencyMs(summary.P95),
		formatLatencyMs(summary.P99),
		formatLatencyMs(summary.Max))
	fmt.Fprintf(r.writer, "  min: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(summary.Min),
		formatLatencyMs(summary.Mean),
		formatLatencyMs(summary.StdDev))

	if len(summary.StatusCodes) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "STATUS CODES")
		for _, code := range slices.Sorted(maps.Keys(summary.StatusCodes)) {
			c := r.green
			if code >= 400 {
				c = r.red
			} else if code >= 300 {
				c = r.yellow
			}
			c.Fprintf(r.writer, "  %d", code)
			fmt.Fprintf(r.writer, ": %s\n", formatNumber(summary.StatusCodes[code]))
		}
	}

	if len(results) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		for _, tr := range results {
			if tr.Passed {
				r.green.Fprintf(r.writer, "  ✓ ")
			} else {
				r.red.Fprintf(r.writer, "  ✗ ")
			}
			fmt.Fprintf(r.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}

		fmt.Fprintln(r.writer)
		if AllPassed(results) {
			r.green.Fprintln(r.writer, "All thresholds passed!")
		} else {
			r.red.Fprintln(r.writer, "Some thresholds failed!")
		}
	}

	fmt.Fprintln(r.writer)
}

// JSONSummary writes the summary as indented JSON.
func (r *Reporter) JSONSummary(summary *Summary, results []ThresholdResult) error {
	statuses := make(map[string]int64, len(summary.StatusCodes))
	for code, n := range summary.StatusCodes {
		statuses[fmt.Sprint(code)] = n
	}

	output := map[string]any{
		"duration": summary.Duration.String(),
		"requests": map[string]any{
			"total":    summary.Total,
			"success":  summary.SuccessCount,
			"failed":   summary.ErrorCount,
			"timeouts": summary.TimeoutCount,
		},
		"rates": map[string]any{
			"rps":         summary.RPS,
			"successRate": summary.SuccessRate,
			"errorRate":   summary.ErrorRate,
		},
		"latency": map[string]any{
			"p50":    summary.P50.Milliseconds(),
			"p95":    summary.P95.Milliseconds(),
			"p99":    summary.P99.Milliseconds(),
			"min":    summary.Min.Milliseconds(),
			"max":    summary.Max.Milliseconds(),
			"mean":   summary.Mean.Milliseconds(),
			"stddev": summary.StdDev.Milliseconds(),
		},
		"statusCodes": statuses,
	}

	if len(results) > 0 {
		thresholds := make([]map[string]any, len(results))
		for i, tr := range results {
			thresholds[i] = map[string]any{
				"name":     tr.Name,
				"passed":   tr.Passed,
				"expected": tr.Expected,
				"actual":   tr.Actual,
			}
		}
		output["thresholds"] = thresholds
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatLatencyMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1 {
		return fmt.Sprintf("%.2f", ms)
	}
	if ms < 10 {
		return fmt.Sprintf("%.1f", ms)
	}
	return fmt.Sprintf("%.0f", ms)
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}

	result := make([]byte, 0, len(s)+(len(s)-1)/3)
	start := len(s) % 3
	if start == 0 {
		start = 3
	}

	result = append(result, s[:start]...)
	for i := start; i < len(s); i += 3 {
		result = append(result, ',')
		result = append(result, s[i:i+3]...)
	}

	return string(result)
}
