package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/abdul-hamid-achik/nicehttp/packages/core/config"
	nicehttp "github.com/abdul-hamid-achik/nicehttp/packages/http"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag  string
	noColorFlag bool
	verboseFlag int // 0=warn, 1=-v info, 2=-vv debug

	logLevel = new(slog.LevelVar)
)

var rootCmd = &cobra.Command{
	Use:   "nicehttp",
	Short: "Friendly HTTP requests from the command line",
	Long: `nicehttp sends HTTP requests with sensible defaults, runs YAML request
scenarios through a cookie session and benchmarks endpoints.

Defaults come from nicehttp.yaml in the current directory, or the file
given with --config.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("NICEHTTP_CONFIG", ""), "Path to config file (env: NICEHTTP_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("NICEHTTP_NO_COLOR", false), "Disable colored output (env: NICEHTTP_NO_COLOR)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Verbose logging to stderr (-v, -vv for more detail)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(ExitUsageError, err)
	})

	rootCmd.AddCommand(requestCmd)
	for _, c := range methodCmds {
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	logLevel.Set(slog.LevelWarn)
	switch {
	case verboseFlag >= 2:
		logLevel.Set(slog.LevelDebug)
	case verboseFlag == 1:
		logLevel.Set(slog.LevelInfo)
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig reads the config file; CLI flags are applied on top by each
// command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	if noColorFlag {
		cfg.NoColor = config.BoolPtr(true)
	}
	if verboseFlag > 0 {
		cfg.Verbose = config.BoolPtr(true)
	} else if cfg.GetVerbose() {
		logLevel.Set(slog.LevelInfo)
	}
	return cfg, nil
}

// newClient builds a client from cfg. close releases the response cache.
func newClient(cfg *config.Config, extra ...nicehttp.ClientOption) (*nicehttp.Client, func() error, error) {
	opts, closeFn, err := cfg.ClientOptions()
	if err != nil {
		return nil, nil, withExitCode(ExitConfigError, err)
	}
	opts = append(opts, nicehttp.WithLogger(slog.Default()))
	opts = append(opts, extra...)
	return nicehttp.NewClient(opts...), closeFn, nil
}
