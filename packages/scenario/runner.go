package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	neturl "net/url"
	"path/filepath"
	"slices"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/assertions"
	"github.com/abdul-hamid-achik/nicehttp/packages/capture"
	"github.com/abdul-hamid-achik/nicehttp/packages/core/env"
	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Name       string
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
	Err        error
	Assertions []*assertions.Result
	// Captured holds the values this step exported to later steps.
	Captured map[string]string
}

// Passed reports whether the request succeeded and every expectation held.
func (r *StepResult) Passed() bool {
	return r.Err == nil && assertions.AllPassed(r.Assertions)
}

// Result is the outcome of a scenario run.
type Result struct {
	Name     string
	Steps    []*StepResult
	Skipped  int
	Duration time.Duration
}

// Passed counts passing steps.
func (r *Result) Passed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Passed() {
			n++
		}
	}
	return n
}

// Failed counts failing steps.
func (r *Result) Failed() int {
	return len(r.Steps) - r.Passed()
}

// Runner executes scenarios.
type Runner struct {
	client *nicehttp.Client
	logger *slog.Logger
	bail   bool
	opts   []nicehttp.SessionOption
	vars   map[string]string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBail stops a run at the first failing step.
func WithBail(bail bool) RunnerOption {
	return func(r *Runner) {
		r.bail = bail
	}
}

// WithVariables sets variables that take precedence over the scenario's own.
func WithVariables(vars map[string]string) RunnerOption {
	return func(r *Runner) {
		r.vars = vars
	}
}

// WithSessionOptions configures the session each run creates.
func WithSessionOptions(opts ...nicehttp.SessionOption) RunnerOption {
	return func(r *Runner) {
		r.opts = append(r.opts, opts...)
	}
}

// NewRunner returns a runner sending requests through client.
func NewRunner(client *nicehttp.Client, opts ...RunnerOption) *Runner {
	r := &Runner{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every step in order with a fresh session. Step failures are
// reported in the result; the error is only set when ctx ends the run.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	start := time.Now()
	session := nicehttp.NewSession(r.client, r.opts...)
	result := &Result{Name: sc.Name}
	vars := r.resolver(sc)

	groups := sc.groups()
	for gi, group := range groups {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var steps []*StepResult
		if len(group) == 1 {
			steps = []*StepResult{r.runStep(ctx, session, vars, sc, group[0])}
		} else {
			// runStep never fails; errors live in the step results
			steps, _ = nicehttp.Map(ctx, group, sc.Concurrency, func(ctx context.Context, step *Step) (*StepResult, error) {
				return r.runStep(ctx, session, vars, sc, step), nil
			})
		}
		result.Steps = append(result.Steps, steps...)

		if r.bail && slices.ContainsFunc(steps, func(s *StepResult) bool { return !s.Passed() }) {
			for _, rest := range groups[gi+1:] {
				result.Skipped += len(rest)
			}
			break
		}
	}

	result.Duration = time.Since(start)
	return result, ctx.Err()
}

// resolver seeds a run's placeholders from the scenario and runner
// variables. Scenario variables may themselves refer to the environment.
func (r *Runner) resolver(sc *Scenario) *env.Resolver {
	vars := env.NewResolver()
	vars.SetWarnFunc(func(format string, args ...any) {
		r.logger.Warn(fmt.Sprintf(format, args...), "scenario", sc.Name)
	})
	vars.SetVariables(vars.ResolveMap(sc.Vars))
	vars.SetVariables(r.vars)
	return vars
}

func (r *Runner) runStep(ctx context.Context, session *nicehttp.Session, vars *env.Resolver, sc *Scenario, step *Step) *StepResult {
	res := &StepResult{Name: step.Name, Method: step.Method}

	target, err := resolveURL(vars.Resolve(sc.BaseURL), vars.Resolve(step.URL))
	if err != nil {
		res.Err = err
		return res
	}
	res.URL = target

	opts, err := stepOptions(sc, step, vars)
	if err != nil {
		res.Err = err
		return res
	}

	resp, err := session.Custom(ctx, step.Method, target, opts...)
	if err != nil {
		res.Err = err
		r.logger.Debug("step failed", "step", step.Name, "error", err)
		return res
	}
	defer resp.Close()

	res.StatusCode = resp.StatusCode
	res.Duration = resp.Duration
	res.Assertions = assertions.EvaluateAll(resp, step.assertions, assertions.WithBaseDir(sc.Dir))

	if len(step.captures) > 0 {
		captured, err := capture.ExtractAll(resp, step.captures)
		for name, v := range captured {
			vars.SetCapture(step.Name, name, v)
		}
		res.Captured = captured
		if err != nil {
			res.Err = err
		}
	}

	r.logger.Debug("step finished", "step", step.Name, "status", resp.StatusCode, "passed", res.Passed())
	return res
}

func stepOptions(sc *Scenario, step *Step, vars *env.Resolver) ([]nicehttp.RequestOption, error) {
	headers := vars.ResolveMap(sc.Headers)
	if headers == nil {
		headers = make(map[string]string, len(step.Headers))
	}
	maps.Copy(headers, vars.ResolveMap(step.Headers))
	data := vars.ResolveMap(step.Data)

	opts := []nicehttp.RequestOption{
		nicehttp.Headers(headers),
		nicehttp.Params(vars.ResolveMap(step.Params)),
		nicehttp.Cookies(vars.ResolveMap(step.Cookies)),
	}

	if step.Referer != "" {
		opts = append(opts, nicehttp.Referer(vars.Resolve(step.Referer)))
	}
	if data != nil && len(step.Files) == 0 {
		opts = append(opts, nicehttp.Data(data))
	}
	if step.JSON != nil {
		opts = append(opts, nicehttp.JSON(vars.ResolveValue(step.JSON)))
	}
	if step.Body != "" {
		opts = append(opts, nicehttp.Body([]byte(vars.Resolve(step.Body)), step.ContentType))
	}
	if len(step.Files) > 0 {
		// form fields travel as multipart parts next to the files
		files := nicehttp.FilesFromMap(data)
		for _, name := range slices.Sorted(maps.Keys(step.Files)) {
			path := vars.Resolve(step.Files[name])
			if !filepath.IsAbs(path) {
				path = filepath.Join(sc.Dir, path)
			}
			f, err := nicehttp.OpenFile(name, path)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
		opts = append(opts, nicehttp.Files(files...))
	}
	if step.Timeout > 0 {
		opts = append(opts, nicehttp.Timeout(step.Timeout))
	}
	if step.AllowRedirects != nil {
		opts = append(opts, nicehttp.AllowRedirects(*step.AllowRedirects))
	}
	if step.Cache > 0 {
		opts = append(opts, nicehttp.Cache(step.Cache))
	}

	return opts, nil
}

func resolveURL(base, ref string) (string, error) {
	if base == "" {
		return ref, nil
	}
	b, err := neturl.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	r, err := neturl.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid step url: %w", err)
	}
	return b.ResolveReference(r).String(), nil
}
