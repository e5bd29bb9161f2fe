package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/nicehttp/packages/scenario"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate scenario files without running them",
	Long: `Check scenario files for YAML, field and expectation errors without
sending any request.

Examples:
  nicehttp validate login.yaml
  nicehttp validate ./scenarios/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, errors.New("no scenario files found"))
	}

	hasErrors := false
	for _, file := range files {
		if _, err := scenario.Load(file); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %v\n", err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return withExitCode(ExitParseError, errors.New("validation failed"))
	}

	return nil
}
