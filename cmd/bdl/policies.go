package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/bdl/pkg/cli"
	"mercator-hq/bdl/pkg/policy/manager"
)

var policiesFlags struct {
	format string
	latest bool
	watch  bool
}

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List loaded policies",
	Long: `List every policy version loaded from the policy directory.

With --watch the command keeps running: policies are reloaded whenever files
change, or when new commits land on the branch if policy.git is enabled (a
version that fails to reload keeps its last good form). Metrics are
served on telemetry.metrics.addr and trace retention runs on its schedule.
Stop it with Ctrl-C.

Examples:
  # Table of every version
  bdl policies --policies ./policies

  # Latest versions only, as CSV
  bdl policies --latest --format csv

  # Keep policies hot and serve metrics
  BDL_TELEMETRY_METRICS_ADDR=:9090 bdl policies --watch

  # Follow a policy repository
  BDL_POLICY_GIT_ENABLED=true BDL_POLICY_GIT_URL=https://github.com/org/policies.git \
    BDL_POLICY_GIT_PATH=policies bdl policies --watch`,
	RunE: listPolicies,
}

func init() {
	rootCmd.AddCommand(policiesCmd)

	policiesCmd.Flags().StringVar(&policiesFlags.format, "format", "text", "output format: text, json, csv")
	policiesCmd.Flags().BoolVar(&policiesFlags.latest, "latest", false, "only list the latest version of each policy")
	policiesCmd.Flags().BoolVar(&policiesFlags.watch, "watch", false, "keep running and reload on file changes")
}

func listPolicies(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(policiesFlags.format)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{
		audit: policiesFlags.watch,
		load:  true,
		serve: policiesFlags.watch,
		watch: policiesFlags.watch,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := printPolicies(stdout, a.service.ListPolicies(), format, policiesFlags.latest); err != nil {
		return err
	}
	if !policiesFlags.watch {
		return nil
	}

	if err := a.watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return cli.NewCommandError("policies", err)
	}
	a.logger.Info("shutting down")
	return nil
}

func printPolicies(w io.Writer, policies []manager.PolicyInfo, format cli.OutputFormat, latestOnly bool) error {
	if latestOnly {
		kept := policies[:0:0]
		for _, p := range policies {
			if p.Latest {
				kept = append(kept, p)
			}
		}
		policies = kept
	}
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(w, policies)
	}

	t := &cli.Table{Headers: []string{"POLICY", "VERSION", "LATEST", "EFFECTIVE", "ACTIVE", "STATEMENTS", "TESTS", "EXTENDS"}}
	for _, p := range policies {
		extends := ""
		if p.Extends != nil {
			extends = p.Extends.String()
		}
		t.Append(
			p.PolicyID,
			p.Version,
			yesNo(p.Latest),
			effectiveWindow(p.EffectiveFrom, p.EffectiveTo),
			yesNo(p.InEffectiveWindow),
			strconv.Itoa(p.Statements),
			strconv.Itoa(p.Tests),
			dash(extends),
		)
	}
	if format == cli.FormatText && len(t.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No policies loaded")
		return err
	}
	return cli.NewFormatter(format).FormatTo(w, t)
}

func effectiveWindow(from, to *time.Time) string {
	if from == nil && to == nil {
		return "always"
	}
	var b strings.Builder
	if from != nil {
		b.WriteString(from.Format(time.DateOnly))
	}
	b.WriteString("..")
	if to != nil {
		b.WriteString(to.Format(time.DateOnly))
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
