package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/bdl/pkg/cli"
	"mercator-hq/bdl/pkg/policy/suite"
)

var testFlags struct {
	policy      string
	version     string
	run         []string
	format      string
	concurrency int
	list        bool
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run policy test suites",
	Long: `Run the test suites shipped with policies.

A suite lives next to its policy in a *.tests.yaml file:

  policy_id: dress-code
  version: 1.0.0
  tests:
    - id: casual-friday
      case:
        request: {item: JEANS}
        context: {day_of_week: FRIDAY, is_client_meeting: false}
      expected:
        verdict: compliant
        reason_codes: [CASUAL_FRIDAY]

Without --policy every latest policy version that has tests is run. The
command exits with status 2 when any test fails.

Examples:
  # Run every suite
  bdl test --policies ./policies

  # Run two cases of one policy version
  bdl test --policy dress-code --version 1.0.0 --run casual-friday,suit-on-monday

  # List the cases of a suite without running them
  bdl test --policy dress-code --list

  # Machine-readable report
  bdl test --format json`,
	RunE: runTests,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVar(&testFlags.policy, "policy", "", "policy id (default: every policy with tests)")
	testCmd.Flags().StringVar(&testFlags.version, "version", "", "policy version (default: latest)")
	testCmd.Flags().StringSliceVar(&testFlags.run, "run", nil, "test case ids to run (default: all)")
	testCmd.Flags().StringVar(&testFlags.format, "format", "text", "output format: text, json")
	testCmd.Flags().IntVar(&testFlags.concurrency, "concurrency", 0, "test cases run in parallel (default: number of CPUs)")
	testCmd.Flags().BoolVar(&testFlags.list, "list", false, "list test cases instead of running them")
}

func runTests(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(testFlags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}
	if testFlags.list {
		return listTests(cmd, format)
	}
	if testFlags.policy == "" && (testFlags.version != "" || len(testFlags.run) > 0) {
		return cli.NewConfigError("policy", "--version and --run need --policy")
	}
	if testFlags.concurrency < 0 {
		return cli.NewConfigError("concurrency", "must not be negative")
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{load: true, testConcurrency: testFlags.concurrency})
	if err != nil {
		return err
	}
	defer a.Close()

	type target struct{ id, version string }
	var targets []target
	if testFlags.policy != "" {
		targets = append(targets, target{testFlags.policy, testFlags.version})
	} else {
		for _, p := range a.service.ListPolicies() {
			if p.Latest && p.Tests > 0 {
				targets = append(targets, target{p.PolicyID, p.Version})
			}
		}
	}
	if len(targets) == 0 {
		fmt.Fprintln(stdout, "No tests found")
		return nil
	}

	progress := cli.NewProgressReporter(os.Stderr, "suites")
	progress.Start(int64(len(targets)))

	var (
		reports []*suite.Report
		failed  int
	)
	for i, t := range targets {
		report, err := a.service.RunTests(ctx, t.id, t.version, testFlags.run)
		if err != nil {
			progress.Error(err)
			return cli.NewCommandError("test", err)
		}
		reports = append(reports, report)
		failed += report.Failed
		progress.Update(int64(i + 1))
	}
	progress.Finish()

	if format == cli.FormatJSON {
		if err := cli.NewFormatter(format).FormatTo(stdout, reports); err != nil {
			return err
		}
	} else {
		printReports(stdout, reports, verbose)
	}

	if failed > 0 {
		return cli.Failuref("%d test(s) failed", failed)
	}
	return nil
}

func listTests(cmd *cobra.Command, format cli.OutputFormat) error {
	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{load: true})
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.service.ListTests(testFlags.policy, testFlags.version)
	if err != nil {
		return cli.NewCommandError("test", err)
	}
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(stdout, list)
	}
	if len(list.Tests) == 0 {
		_, err := fmt.Fprintf(stdout, "%s has no tests\n", list.Policy)
		return err
	}
	t := &cli.Table{Headers: []string{"ID", "EXPECTED", "DESCRIPTION"}}
	for _, tc := range list.Tests {
		t.Append(tc.ID, string(tc.Verdict), tc.Description)
	}
	return cli.NewFormatter(format).FormatTo(stdout, t)
}

func printReports(w io.Writer, reports []*suite.Report, all bool) {
	var total, passed int
	for _, r := range reports {
		total += r.Total
		passed += r.Passed
		fmt.Fprintf(w, "%s: %d passed, %d failed (%s)\n", r.Policy, r.Passed, r.Failed, r.Duration)
		for _, res := range r.Results {
			switch {
			case res.Error != "":
				fmt.Fprintf(w, "  ERROR %s: %s\n", res.ID, res.Error)
			case !res.Passed:
				fmt.Fprintf(w, "  FAIL  %s\n", res.ID)
				for _, m := range res.Mismatches {
					fmt.Fprintf(w, "        %s\n", m)
				}
				fmt.Fprintf(w, "        trace: %s\n", res.TraceID)
			case all:
				fmt.Fprintf(w, "  PASS  %s\n", res.ID)
			}
		}
	}
	status := "PASS"
	if passed < total {
		status = "FAIL"
	}
	fmt.Fprintf(w, "\n%s: %d/%d tests passed across %d %s\n", status, passed, total, len(reports), plural(len(reports), "suite"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
