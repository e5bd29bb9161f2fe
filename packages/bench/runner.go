package bench

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
	"golang.org/x/time/rate"
)

// Func performs one call and reports the response status.
type Func func(ctx context.Context) (status int, err error)

// Runner executes a benchmark.
type Runner struct {
	config  *Config
	call    Func
	metrics *Metrics
	limiter *rate.Limiter
	logger  *slog.Logger

	progress         func(CurrentStats)
	progressInterval time.Duration
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProgress calls fn every interval while the run is active.
func WithProgress(interval time.Duration, fn func(CurrentStats)) RunnerOption {
	return func(r *Runner) {
		r.progressInterval = interval
		r.progress = fn
	}
}

// NewRunner validates config and prepares a run of call.
func NewRunner(config *Config, call Func, opts ...RunnerOption) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		config:  config,
		call:    call,
		metrics: NewMetrics(),
		logger:  slog.Default(),
	}

	if config.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Metrics returns the live collector.
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Run issues config.Requests calls over config.Concurrency workers and
// returns the summary. When ctx is cancelled the partial summary is
// returned together with the context error.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	var issued atomic.Int64
	var wg sync.WaitGroup

	r.metrics.Start()
	r.logger.Debug("bench started",
		"requests", r.config.Requests,
		"concurrency", r.config.Concurrency,
		"rate", r.config.Rate)

	stopProgress := r.startProgress()

	workers := min(r.config.Concurrency, r.config.Requests)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for issued.Add(1) <= int64(r.config.Requests) {
				if !r.once(ctx) {
					return
				}
			}
		}()
	}

	wg.Wait()
	stopProgress()
	r.metrics.Stop()

	summary := r.metrics.Summary()
	r.logger.Debug("bench finished", "total", summary.Total, "errors", summary.ErrorCount, "duration", summary.Duration)

	return summary, ctx.Err()
}

// once performs a single paced call. It returns false when the run should
// stop.
func (r *Runner) once(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return false
		}
	}

	callCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	r.metrics.begin()
	start := time.Now()
	status, err := r.call(callCtx)
	elapsed := time.Since(start)
	r.metrics.end()

	// calls cut short by the caller are not part of the measurement
	if ctx.Err() != nil {
		return false
	}

	if err != nil {
		r.logger.Debug("bench call failed", "error", err)
	}
	r.metrics.Record(elapsed, status, err)
	return true
}

func (r *Runner) startProgress() func() {
	if r.progress == nil || r.progressInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(r.progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				r.progress(r.metrics.Current())
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

// HTTPFunc returns a Func that sends method to url through client and reads
// the whole body.
func HTTPFunc(client *nicehttp.Client, method, url string, opts ...nicehttp.RequestOption) Func {
	return func(ctx context.Context) (int, error) {
		resp, err := client.Custom(ctx, method, url, opts...)
		if err != nil {
			return 0, err
		}
		if _, err := resp.TextLarge(); err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	}
}
