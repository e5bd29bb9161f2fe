package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/core/config"
	"github.com/abdul-hamid-achik/nicehttp/packages/core/env"
	"github.com/abdul-hamid-achik/nicehttp/packages/output"
	"github.com/abdul-hamid-achik/nicehttp/packages/scenario"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run YAML request scenarios",
	Long: `Run the steps of each scenario file through one cookie session and
check their expectations.

Examples:
  nicehttp run login.yaml
  nicehttp run ./scenarios/ --bail
  nicehttp run login.yaml -o junit --output-file report.xml
  nicehttp run login.yaml --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	bailFlag       bool
	watchFlag      bool
	outputFlag     string
	outputFileFlag string
	runTimeoutFlag time.Duration
	runInsecure    bool
	runVars        []string
	runEnvFile     string
)

func init() {
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("NICEHTTP_BAIL", false), "Stop on first failure (env: NICEHTTP_BAIL)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run scenarios")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("NICEHTTP_OUTPUT", "console"), "Output format: console, json, junit, tap (env: NICEHTTP_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("NICEHTTP_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: NICEHTTP_OUTPUT_FILE)")
	runCmd.Flags().DurationVar(&runTimeoutFlag, "timeout", 0, "Request timeout, overrides the config")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Scenario variable as name=value, overrides the file (repeatable)")
	runCmd.Flags().StringVar(&runEnvFile, "env-file", getEnvString("NICEHTTP_ENV_FILE", ""), "Read scenario variables from a .env file (env: NICEHTTP_ENV_FILE)")
	runCmd.Flags().BoolVarP(&runInsecure, "insecure", "k", getEnvBool("NICEHTTP_INSECURE", false), "Disable SSL certificate validation (env: NICEHTTP_INSECURE)")
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *scenario.Result)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

func newFormatter(format string, w io.Writer, noColor, verbose bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "junit":
		return output.NewJUnitFormatter(output.JUnitWithWriter(w)), nil
	case "tap":
		return output.NewTAPFormatter(output.TAPWithWriter(w)), nil
	case "console", "":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verbose),
			output.WithNoColor(noColor),
		), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// runSummary counts outcomes across scenario files.
type runSummary struct {
	failed      int
	parseErrors int
	duration    time.Duration
}

func (s runSummary) err() error {
	switch {
	case s.parseErrors > 0:
		return withExitCode(ExitParseError, fmt.Errorf("%d scenario file(s) could not be loaded", s.parseErrors))
	case s.failed > 0:
		return withExitCode(ExitTestFailure, fmt.Errorf("%d step(s) failed", s.failed))
	}
	return nil
}

// runVariables merges the env file with --var flags, flags winning.
func runVariables() (map[string]string, error) {
	vars := make(map[string]string)
	if runEnvFile != "" {
		fromFile, err := env.LoadDotEnv(runEnvFile)
		if err != nil {
			return nil, err
		}
		maps.Copy(vars, fromFile)
	}
	flags, err := parsePairs(runVars, "=")
	if err != nil {
		return nil, err
	}
	maps.Copy(vars, flags)
	return vars, nil
}

func runScenarios(ctx context.Context, r *scenario.Runner, files []string, formatter Formatter) runSummary {
	var sum runSummary
	start := time.Now()

	for _, file := range files {
		sc, err := scenario.Load(file)
		if err != nil {
			formatter.FormatError(err)
			sum.parseErrors++
			if bailFlag {
				break
			}
			continue
		}
		if sc.Name == "" {
			sc.Name = file
		}

		result, err := r.Run(ctx, sc)
		formatter.FormatResult(result)
		sum.failed += result.Failed()
		if err != nil {
			break
		}
		if bailFlag && result.Failed() > 0 {
			break
		}
	}

	sum.duration = time.Since(start)
	return sum
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runTimeoutFlag > 0 {
		cfg.Timeout = runTimeoutFlag
	}
	if runInsecure {
		cfg.ValidateSSL = config.BoolPtr(false)
	}

	out := cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	formatter, err := newFormatter(outputFlag, out, cfg.GetNoColor(), cfg.GetVerbose())
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	formatter.FormatHeader(version)

	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	vars, err := runVariables()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withExitCode(ExitUsageError, errors.New("no scenario files found"))
	}

	client, closeClient, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient()

	runner := scenario.NewRunner(client,
		scenario.WithLogger(slog.Default()),
		scenario.WithBail(bailFlag),
		scenario.WithVariables(vars),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum := runScenarios(ctx, runner, files, formatter)
	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(sum.duration); err != nil {
			return fmt.Errorf("error writing output: %w", err)
		}
	}

	if !watchFlag {
		return sum.err()
	}

	return watch(ctx, cmd, args, files, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "\nRe-running scenarios...\n\n")

		// fresh formatter state for accumulating formats
		formatter, _ := newFormatter(outputFlag, out, cfg.GetNoColor(), cfg.GetVerbose())
		sum := runScenarios(ctx, runner, files, formatter)
		if flushable, ok := formatter.(Flushable); ok {
			_ = flushable.Flush(sum.duration)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
	})
}

// watch calls rerun after writes to scenario files settle, until ctx ends.
func watch(ctx context.Context, cmd *cobra.Command, args, files []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) || !isScenarioFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\n", event.Name)
				rerun()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
		}
	}
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if !info.IsDir() {
			if isScenarioFile(arg) {
				files = append(files, arg)
			}
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isScenarioFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

// isScenarioFile matches YAML files other than the config file.
func isScenarioFile(path string) bool {
	if slices.Contains(config.ConfigFilenames, filepath.Base(path)) {
		return false
	}
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}
