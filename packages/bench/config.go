package bench

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings of one benchmark run.
type Config struct {
	Requests    int           // total calls to issue
	Concurrency int           // number of workers
	Rate        float64       // calls per second across all workers, 0 means unpaced
	Timeout     time.Duration // per-call timeout, 0 uses the client's
	Thresholds  Thresholds
}

// Thresholds defines pass/fail criteria for a run.
type Thresholds struct {
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	MaxLatency time.Duration
	ErrorRate  float64 // 0.0 - 1.0
	MinRPS     float64
}

// ThresholdResult holds the result of evaluating one threshold.
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Requests:    100,
		Concurrency: 10,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.Requests < 1 {
		return errors.New("requests must be at least 1")
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if c.Rate < 0 {
		return errors.New("rate cannot be negative")
	}
	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	return nil
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a threshold list like "p95<200ms,errors<0.1%,rps>50".
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds

	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := parseThresholdPart(part, &t); err != nil {
			return t, err
		}
	}

	return t, nil
}

func parseThresholdPart(part string, t *Thresholds) error {
	matches := thresholdPattern.FindStringSubmatch(part)
	if len(matches) != 4 {
		return fmt.Errorf("invalid threshold format: %s", part)
	}

	metric := strings.ToLower(matches[1])
	op := matches[2]
	value := strings.TrimSpace(matches[3])

	upper := func(name string, dst *time.Duration) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", name, value)
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("%s threshold must use < or <=", name)
		}
		*dst = d
		return nil
	}

	switch metric {
	case "p50":
		return upper("p50", &t.P50)
	case "p95":
		return upper("p95", &t.P95)
	case "p99":
		return upper("p99", &t.P99)
	case "max", "maxlatency":
		return upper("max latency", &t.MaxLatency)

	case "errors", "error", "errorrate":
		percent := strings.HasSuffix(value, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid error rate: %s", value)
		}
		if percent {
			f /= 100
		}
		if op != "<" && op != "<=" {
			return errors.New("error rate threshold must use < or <=")
		}
		t.ErrorRate = f

	case "rps", "rate":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid RPS: %s", value)
		}
		if op != ">" && op != ">=" {
			return errors.New("RPS threshold must use > or >=")
		}
		t.MinRPS = f

	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}

	return nil
}

// HasThresholds reports whether any threshold is configured.
func (t *Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.MaxLatency > 0 || t.ErrorRate > 0 || t.MinRPS > 0
}

// AllPassed reports whether every result passed.
func AllPassed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
