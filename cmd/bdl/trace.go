package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/bdl/pkg/audit"
	"mercator-hq/bdl/pkg/audit/export"
	"mercator-hq/bdl/pkg/bdl/temporal"
	"mercator-hq/bdl/pkg/cli"
	"mercator-hq/bdl/pkg/decision"
)

// exportPageSize is the number of records fetched per store query while
// exporting.
const exportPageSize = 500

type traceFilter struct {
	policy  string
	version string
	verdict string
	since   time.Duration
	from    string
	to      string
	order   string
}

var traceFlags struct {
	filter traceFilter
	format string
	limit  int
	offset int
	output string
	pretty bool
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect persisted evaluation traces",
	Long: `Inspect the evaluation traces written to the audit store.

Traces outlive the process only with a persistent backend (sqlite, postgres or
redis). The memory backend keeps traces for the lifetime of one command.`,
}

var traceGetCmd = &cobra.Command{
	Use:   "get <trace-id>",
	Short: "Show one trace",
	Args:  cobra.ExactArgs(1),
	RunE:  getTrace,
}

var traceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trace records",
	Long: `List trace records, newest first.

Examples:
  # Last hour of non-compliant expense decisions
  bdl trace list --policy expenses --verdict non_compliant --since 1h

  # A date range as CSV
  bdl trace list --from 2026-01-01 --to 2026-01-31 --format csv`,
	RunE: listTraces,
}

var traceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export trace records",
	Long: `Export every trace record matching the filters as JSON or CSV.

JSON exports carry the full trace payload. CSV exports carry the decision
summary and the payload hash.

Examples:
  bdl trace export --policy travel --format csv --output travel.csv
  bdl trace export --since 24h --pretty > today.json`,
	RunE: exportTraces,
}

var tracePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy now",
	RunE:  pruneTraces,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.AddCommand(traceGetCmd, traceListCmd, traceExportCmd, tracePruneCmd)

	traceGetCmd.Flags().StringVar(&traceFlags.format, "format", "json", "output format: json, text")

	for _, c := range []*cobra.Command{traceListCmd, traceExportCmd} {
		f := c.Flags()
		f.StringVar(&traceFlags.filter.policy, "policy", "", "filter by policy id")
		f.StringVar(&traceFlags.filter.version, "version", "", "filter by policy version")
		f.StringVar(&traceFlags.filter.verdict, "verdict", "", "filter by verdict")
		f.DurationVar(&traceFlags.filter.since, "since", 0, "only records newer than this duration")
		f.StringVar(&traceFlags.filter.from, "from", "", "only records at or after this date or datetime")
		f.StringVar(&traceFlags.filter.to, "to", "", "only records at or before this date or datetime")
		f.StringVar(&traceFlags.filter.order, "order", "desc", "sort order on creation time: asc, desc")
	}

	traceListCmd.Flags().StringVar(&traceFlags.format, "format", "text", "output format: text, json, csv")
	traceListCmd.Flags().IntVar(&traceFlags.limit, "limit", audit.DefaultQueryLimit, "maximum records to list")
	traceListCmd.Flags().IntVar(&traceFlags.offset, "offset", 0, "records to skip")

	traceExportCmd.Flags().StringVar(&traceFlags.format, "format", "json", "export format: json, csv")
	traceExportCmd.Flags().StringVarP(&traceFlags.output, "output", "o", "", "output file (default: stdout)")
	traceExportCmd.Flags().BoolVar(&traceFlags.pretty, "pretty", false, "indent JSON output")
}

// query builds a store query from the filter flags.
func (f traceFilter) query(now time.Time) (*audit.Query, error) {
	q := &audit.Query{
		PolicyID:  f.policy,
		Version:   f.version,
		Verdict:   strings.ToLower(f.verdict),
		SortOrder: strings.ToLower(f.order),
	}
	if f.since < 0 {
		return nil, cli.NewConfigError("since", "must not be negative")
	}
	if f.since > 0 {
		start := now.Add(-f.since)
		q.StartTime = &start
	}
	if f.from != "" {
		if f.since > 0 {
			return nil, cli.NewConfigError("from", "--from and --since are mutually exclusive")
		}
		t, err := temporal.ParseString(f.from)
		if err != nil {
			return nil, cli.NewConfigError("from", err.Error())
		}
		q.StartTime = &t
	}
	if f.to != "" {
		t, err := temporal.ParseString(f.to)
		if err != nil {
			return nil, cli.NewConfigError("to", err.Error())
		}
		q.EndTime = &t
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func getTrace(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(traceFlags.format, cli.FormatJSON, cli.FormatText)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{audit: true})
	if err != nil {
		return err
	}
	defer a.Close()

	tr, err := a.service.GetTrace(ctx, args[0])
	if err != nil {
		return cli.NewCommandError("trace get", err)
	}
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(stdout, tr)
	}

	t := &cli.Table{}
	t.Append("Trace ID:", tr.TraceID)
	t.Append("Policy:", tr.Policy.String())
	t.Append("Verdict:", string(tr.Verdict))
	t.Append("Reason codes:", joinOrDash(tr.ReasonCodes))
	t.Append("Required fields:", joinOrDash(tr.RequiredFields))
	t.Append("Profile:", fmt.Sprintf("%s (missing data: %s)", dash(tr.Profile.Name), tr.Profile.MissingDataBehavior))
	t.Append("Started:", tr.StartedAt.Format(time.RFC3339Nano))
	if err := cli.NewFormatter(cli.FormatText).FormatTo(stdout, t); err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	return printStatements(stdout, tr)
}

func listTraces(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(traceFlags.format)
	if err != nil {
		return err
	}
	q, err := traceFlags.filter.query(time.Now())
	if err != nil {
		return err
	}
	q.Limit = traceFlags.limit
	q.Offset = traceFlags.offset

	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{audit: true})
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.service.ListTraces(ctx, q)
	if err != nil {
		return cli.NewCommandError("trace list", err)
	}
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(stdout, records)
	}

	t := &cli.Table{Headers: []string{"TRACE ID", "CREATED", "POLICY", "VERSION", "VERDICT", "REASON CODES", "REQUIRED FIELDS"}}
	for _, r := range records {
		t.Append(
			r.TraceID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.PolicyID,
			r.Version,
			r.Verdict,
			strings.Join(r.ReasonCodes, ";"),
			strings.Join(r.RequiredFields, ";"),
		)
	}
	if format == cli.FormatText && len(records) == 0 {
		_, err := fmt.Fprintln(stdout, "No traces found")
		return err
	}
	return cli.NewFormatter(format).FormatTo(stdout, t)
}

func exportTraces(cmd *cobra.Command, args []string) (err error) {
	var exporter audit.Exporter
	switch strings.ToLower(traceFlags.format) {
	case "json":
		exporter = export.NewJSONExporter(traceFlags.pretty)
	case "csv":
		exporter = export.NewCSVExporter(true)
	default:
		return cli.NewConfigError("format", fmt.Sprintf("invalid format %q (valid: json, csv)", traceFlags.format))
	}
	q, err := traceFlags.filter.query(time.Now())
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{audit: true})
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := collectTraces(ctx, a.service, q)
	if err != nil {
		return cli.NewCommandError("trace export", err)
	}

	var w io.Writer = stdout
	if traceFlags.output != "" {
		f, err := os.Create(traceFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", traceFlags.output, err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	if err := exporter.Export(ctx, records, w); err != nil {
		return cli.NewCommandError("trace export", err)
	}
	if traceFlags.output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d %s to %s\n", len(records), plural(len(records), "trace"), traceFlags.output)
	}
	return nil
}

// collectTraces pages through every record matching q.
func collectTraces(ctx context.Context, svc *decision.Service, q *audit.Query) ([]*audit.Record, error) {
	page := *q
	page.Limit = exportPageSize
	page.Offset = 0

	var out []*audit.Record
	for {
		records, err := svc.ListTraces(ctx, &page)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
		if len(records) < page.Limit {
			return out, nil
		}
		page.Offset += len(records)
	}
}

func pruneTraces(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{audit: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.pruner == nil {
		return cli.NewCommandError("trace prune", decision.ErrTracesDisabled)
	}
	n, err := a.pruner.Prune(ctx)
	if err != nil {
		return cli.NewCommandError("trace prune", err)
	}
	fmt.Fprintf(stdout, "Pruned %d %s\n", n, plural(int(n), "trace"))
	return nil
}
