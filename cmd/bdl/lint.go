package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/cli"
	"mercator-hq/bdl/pkg/config"
	"mercator-hq/bdl/pkg/policy/manager"
	"mercator-hq/bdl/pkg/telemetry/logging"
)

var lintFlags struct {
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint [path...]",
	Short: "Validate policy documents",
	Long: `Validate BDL policy documents and test suites.

Each path (a directory or a single document) is loaded the way the decision
engine loads it: documents are parsed and validated, extends chains are
composed, statements and expressions are compiled and suites are checked
against their policy. Without arguments the configured policy directory is
linted.

Examples:
  # Lint the configured policy directory
  bdl lint

  # Lint two directories
  bdl lint policies/ drafts/

  # Strict mode (warnings fail the run)
  bdl lint --strict policies/

  # JSON output for CI/CD
  bdl lint --format json policies/`,
	RunE: lintPolicies,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// lintResult is the outcome of linting one path.
type lintResult struct {
	Path     string          `json:"path"`
	Valid    bool            `json:"valid"`
	Loaded   []ast.PolicyRef `json:"loaded"`
	Suites   int             `json:"suites"`
	Errors   []string        `json:"errors,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

func lintPolicies(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paths := args
	if len(paths) == 0 {
		paths = []string{cfg.Policy.Dir}
	}

	logger := logging.Discard()
	if verbose {
		l, err := logging.New(logging.Config{Level: "debug", Format: "text", Writer: os.Stderr})
		if err != nil {
			return err
		}
		logger = l.Logger
	}

	ctx := commandContext(cmd)
	results := make([]lintResult, 0, len(paths))
	var errCount, warnCount int
	for _, path := range paths {
		r := lintPath(ctx, cfg, path, logger)
		errCount += len(r.Errors)
		warnCount += len(r.Warnings)
		results = append(results, r)
	}

	if format == cli.FormatJSON {
		if err := cli.NewFormatter(format).FormatTo(stdout, results); err != nil {
			return err
		}
	} else {
		printLintResults(stdout, results)
	}

	if errCount > 0 {
		return cli.Failuref("lint failed: %d error(s), %d warning(s)", errCount, warnCount)
	}
	if lintFlags.strict && warnCount > 0 {
		return cli.Failuref("lint failed in strict mode: %d warning(s)", warnCount)
	}
	return nil
}

func lintPath(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) lintResult {
	out := lintResult{Path: path, Loaded: []ast.PolicyRef{}}

	mc := cfg.ManagerConfig()
	mc.Dir = path
	mc.Watch = false
	m, err := manager.NewManager(mc, logger)
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
		return out
	}
	defer m.Close()

	res, err := m.LoadPolicies(ctx)
	out.Loaded = append(out.Loaded, res.Loaded...)
	out.Suites = res.SuiteCount
	out.Warnings = res.Warnings
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	if err != nil && len(res.Errors) == 0 {
		out.Errors = append(out.Errors, err.Error())
	}
	out.Valid = len(out.Errors) == 0
	return out
}

func printLintResults(w io.Writer, results []lintResult) {
	for _, r := range results {
		status := "OK"
		if !r.Valid {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s %s: %d %s, %d %s\n", status, r.Path,
			len(r.Loaded), plural(len(r.Loaded), "version"), r.Suites, plural(r.Suites, "suite"))
		for _, ref := range r.Loaded {
			fmt.Fprintf(w, "  loaded  %s\n", ref)
		}
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  error   %s\n", e)
		}
		for _, wn := range r.Warnings {
			fmt.Fprintf(w, "  warning %s\n", wn)
		}
	}
}
