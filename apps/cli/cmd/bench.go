package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/bench"
	"github.com/abdul-hamid-achik/nicehttp/packages/core/config"
	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var benchCmd = &cobra.Command{
	Use:   "bench <url>",
	Short: "Benchmark an endpoint",
	Long: `Send a fixed number of requests across concurrent workers and report
latency percentiles, throughput and the status code breakdown.

Thresholds fail the command when not met:
  p50, p95, p99, max   latency upper bounds (e.g. p95<200ms)
  errors               error rate upper bound (e.g. errors<1%)
  rps                  throughput lower bound (e.g. rps>50)

Examples:
  nicehttp bench https://api.example.com/health -n 1000 -c 20
  nicehttp bench https://api.example.com/health -n 500 --rate 100
  nicehttp bench https://api.example.com/health --threshold "p95<200ms,errors<1%"
  nicehttp bench https://api.example.com/items -X POST --body '{"a":1}' --json`,
	Args: cobra.ExactArgs(1),
	RunE: benchCommand,
}

var (
	benchRequests    int
	benchConcurrency int
	benchRate        float64
	benchThreshold   string
	benchJSON        bool
	benchTimeout     time.Duration
	benchMethod      string
	benchHeaders     []string
	benchBody        string
	benchNoProgress  bool
	benchInsecure    bool
)

func init() {
	f := benchCmd.Flags()
	f.IntVarP(&benchRequests, "requests", "n", getEnvInt("NICEHTTP_BENCH_REQUESTS", 100), "Total number of requests (env: NICEHTTP_BENCH_REQUESTS)")
	f.IntVarP(&benchConcurrency, "concurrency", "c", getEnvInt("NICEHTTP_BENCH_CONCURRENCY", 10), "Number of concurrent workers (env: NICEHTTP_BENCH_CONCURRENCY)")
	f.Float64Var(&benchRate, "rate", 0, "Requests per second across all workers (0 = unpaced)")
	f.StringVar(&benchThreshold, "threshold", "", "Pass/fail thresholds (e.g., \"p95<200ms,errors<1%,rps>50\")")
	f.BoolVar(&benchJSON, "json", false, "Output results as JSON")
	f.DurationVar(&benchTimeout, "timeout", 0, "Per-request timeout, overrides the config")
	f.StringVarP(&benchMethod, "method", "X", "GET", "HTTP method")
	f.StringArrayVarP(&benchHeaders, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	f.StringVar(&benchBody, "body", "", "JSON request body")
	f.BoolVar(&benchNoProgress, "no-progress", false, "Disable real-time progress display")
	f.BoolVarP(&benchInsecure, "insecure", "k", getEnvBool("NICEHTTP_INSECURE", false), "Disable SSL certificate validation (env: NICEHTTP_INSECURE)")
}

// buildBenchConfig builds the run configuration from flags
func buildBenchConfig() (*bench.Config, error) {
	cfg := bench.DefaultConfig()
	cfg.Requests = benchRequests
	cfg.Concurrency = benchConcurrency
	cfg.Rate = benchRate
	cfg.Timeout = benchTimeout

	if benchThreshold != "" {
		t, err := bench.ParseThresholds(benchThreshold)
		if err != nil {
			return nil, fmt.Errorf("invalid thresholds: %w", err)
		}
		cfg.Thresholds = t
	}

	return cfg, cfg.Validate()
}

func benchCommand(cmd *cobra.Command, args []string) error {
	url := args[0]
	method := strings.ToUpper(benchMethod)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if benchInsecure {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	// responses must never come from the cache
	cfg.CacheTime = 0

	bcfg, err := buildBenchConfig()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	headers, err := parsePairs(benchHeaders, ":")
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	opts := []nicehttp.RequestOption{nicehttp.Headers(headers)}
	if benchBody != "" {
		if !gjson.Valid(benchBody) {
			return withExitCode(ExitUsageError, errors.New("--body is not valid JSON"))
		}
		opts = append(opts, nicehttp.JSON(nicehttp.JSONString(benchBody)))
	}

	client, closeClient, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient()

	reporter := bench.NewReporter(
		bench.WithWriter(cmd.OutOrStdout()),
		bench.WithNoColor(cfg.GetNoColor()),
	)

	runnerOpts := []bench.RunnerOption{bench.WithLogger(slog.Default())}
	showProgress := !benchJSON && !benchNoProgress
	if showProgress {
		runnerOpts = append(runnerOpts, bench.WithProgress(200*time.Millisecond, func(s bench.CurrentStats) {
			reporter.Progress(s, bcfg.Requests)
		}))
	}

	runner, err := bench.NewRunner(bcfg, bench.HTTPFunc(client, method, url, opts...), runnerOpts...)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !benchJSON {
		reporter.Header(method, url, bcfg)
	}

	summary, err := runner.Run(ctx)
	if showProgress {
		reporter.ClearProgress()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	results := summary.EvaluateThresholds(bcfg.Thresholds)
	if benchJSON {
		if err := reporter.JSONSummary(summary, results); err != nil {
			return err
		}
	} else {
		reporter.Summary(summary, results)
	}

	if !bench.AllPassed(results) {
		return withExitCode(ExitTestFailure, errors.New("thresholds not met"))
	}
	return nil
}
