package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/nicehttp/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter config and scenario",
	Long: `Create a starter project in the current directory.

This creates:
  - nicehttp.yaml   - client defaults
  - example.yaml    - example scenario

Examples:
  nicehttp init
  nicehttp init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleScenario = `name: example
baseURL: https://httpbin.org
headers:
  Accept: application/json
vars:
  user: ada
steps:
  - name: set a cookie
    url: /cookies/set?session=abc
    expect:
      - status == 200
      - body.cookies.session == abc

  - name: cookie is sent back
    url: /cookies
    expect:
      - body.cookies.session == abc

  - name: post a form
    method: POST
    url: /post
    data:
      user: "{{user}}"
      nonce: "{{randomString(8)}}"
    capture:
      nonce: body.form.nonce
    expect:
      - status == 200
      - body.form.user == ada
      - duration < 5000

  - name: reuse a captured value
    url: /anything/{{nonce}}
    expect:
      - status == 200
      - body.url contains /anything/
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	exampleFile := filepath.Join(cwd, "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.UserAgent = "nicehttp/" + version
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleScenario), 0o644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nRun 'nicehttp run example.yaml' to execute the example scenario.\n")
	return nil
}
