package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/bdl/pkg/cli"
)

var (
	// Global flags
	cfgFile   string
	policyDir string
	logLevel  string
	verbose   bool

	// stdout receives command output. Tests replace it.
	stdout io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "bdl",
	Short: "BDL decision engine",
	Long: `bdl evaluates Cases against business decision policies written in BDL.

Every evaluation returns exactly one verdict (compliant, non_compliant,
needs_info, needs_review or no_change) with reason codes, the fields that were
missing and a trace id. Traces are written to the configured audit store.

Policies are loaded from a directory of YAML or JSON documents. Test suites
live next to them in *.tests.yaml files.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the command's status.
func Execute() {
	ctx, cancel := cli.SetupSignalHandler(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		var ee *cli.ExitError
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.Message)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.ExitCode(err))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults plus BDL_ environment when empty)")
	rootCmd.PersistentFlags().StringVarP(&policyDir, "policies", "p", "", "policy directory or file (overrides policy.dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides telemetry.logging.level)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
