package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/nicehttp/packages/scenario"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the steps of scenario files",
	Long: `List every step defined in scenario files.

Examples:
  nicehttp list login.yaml
  nicehttp list ./scenarios/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if len(files) == 0 {
		return withExitCode(ExitUsageError, errors.New("no scenario files found"))
	}

	for _, file := range files {
		sc, err := scenario.Load(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %v\n", err)
			continue
		}

		title := file
		if sc.Name != "" {
			title = fmt.Sprintf("%s (%s)", sc.Name, file)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", title)
		for _, step := range sc.Steps {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s: %s %s", step.Name, step.Method, step.URL)
			if step.Parallel {
				fmt.Fprint(cmd.OutOrStdout(), " [parallel]")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			for _, e := range step.Expect {
				fmt.Fprintf(cmd.OutOrStdout(), "      expect %s\n", e)
			}
		}
	}

	return nil
}
