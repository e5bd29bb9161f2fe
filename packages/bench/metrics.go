package bench

import (
	"context"
	"errors"
	"maps"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics collects call outcomes for one run.
type Metrics struct {
	mu sync.RWMutex

	total    atomic.Int64
	success  atomic.Int64
	errors   atomic.Int64
	timeouts atomic.Int64
	inFlight atomic.Int32

	// latency in microseconds
	histogram *hdrhistogram.Histogram
	statuses  map[int]int64

	startTime time.Time
	endTime   time.Time
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		statuses:  make(map[int]int64),
	}
}

// Start marks the beginning of the run.
func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// Stop marks the end of the run.
func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

// Record stores one call outcome. A call fails when it returned an error or
// a status of 400 or above; deadline errors also count as timeouts.
func (m *Metrics) Record(duration time.Duration, status int, err error) {
	m.total.Add(1)

	switch {
	case err != nil:
		m.errors.Add(1)
		if errors.Is(err, context.DeadlineExceeded) {
			m.timeouts.Add(1)
		}
	case status >= 400:
		m.errors.Add(1)
	default:
		m.success.Add(1)
	}

	latencyUs := min(max(duration.Microseconds(), minLatencyUs), maxLatencyUs)

	m.mu.Lock()
	_ = m.histogram.RecordValue(latencyUs)
	if status > 0 {
		m.statuses[status]++
	}
	m.mu.Unlock()
}

func (m *Metrics) begin() { m.inFlight.Add(1) }
func (m *Metrics) end()   { m.inFlight.Add(-1) }

// Summary is the final report of a run.
type Summary struct {
	Duration     time.Duration
	Total        int64
	SuccessCount int64
	ErrorCount   int64
	TimeoutCount int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	StatusCodes map[int]int64
}

// Summary returns the aggregated results so far.
func (m *Metrics) Summary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.total.Load()
	success := m.success.Load()
	failed := m.errors.Load()

	var rps, successRate, errorRate float64
	if duration > 0 {
		rps = float64(total) / duration.Seconds()
	}
	if total > 0 {
		successRate = float64(success) / float64(total)
		errorRate = float64(failed) / float64(total)
	}

	return &Summary{
		Duration:     duration,
		Total:        total,
		SuccessCount: success,
		ErrorCount:   failed,
		TimeoutCount: m.timeouts.Load(),
		RPS:          rps,
		SuccessRate:  successRate,
		ErrorRate:    errorRate,
		P50:          us(m.histogram.ValueAtQuantile(50)),
		P95:          us(m.histogram.ValueAtQuantile(95)),
		P99:          us(m.histogram.ValueAtQuantile(99)),
		Min:          us(m.histogram.Min()),
		Max:          us(m.histogram.Max()),
		Mean:         us(int64(m.histogram.Mean())),
		StdDev:       us(int64(m.histogram.StdDev())),
		StatusCodes:  maps.Clone(m.statuses),
	}
}

// CurrentStats is a cheap snapshot for progress display.
type CurrentStats struct {
	Elapsed  time.Duration
	Total    int64
	Errors   int64
	InFlight int32
	P95      time.Duration
}

// Current returns a progress snapshot.
func (m *Metrics) Current() CurrentStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return CurrentStats{
		Elapsed:  time.Since(m.startTime),
		Total:    m.total.Load(),
		Errors:   m.errors.Load(),
		InFlight: m.inFlight.Load(),
		P95:      us(m.histogram.ValueAtQuantile(95)),
	}
}

func us(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

// EvaluateThresholds checks the summary against t. Only configured
// thresholds produce a result.
func (s *Summary) EvaluateThresholds(t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit <= 0 {
			return
		}
		results = append(results, ThresholdResult{
			Name:     name,
			Passed:   actual <= limit,
			Expected: "< " + limit.String(),
			Actual:   actual.String(),
		})
	}

	latency("p50", t.P50, s.P50)
	latency("p95", t.P95, s.P95)
	latency("p99", t.P99, s.P99)
	latency("max latency", t.MaxLatency, s.Max)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   s.ErrorRate <= t.ErrorRate,
			Expected: "< " + formatPercent(t.ErrorRate),
			Actual:   formatPercent(s.ErrorRate),
		})
	}

	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "min RPS",
			Passed:   s.RPS >= t.MinRPS,
			Expected: "> " + formatFloat(t.MinRPS),
			Actual:   formatFloat(s.RPS),
		})
	}

	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
