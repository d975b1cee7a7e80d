package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/bdl/pkg/bdl/ast"
	"mercator-hq/bdl/pkg/bdl/temporal"
	"mercator-hq/bdl/pkg/cli"
	"mercator-hq/bdl/pkg/decision"
	"mercator-hq/bdl/pkg/policy/engine"
)

var evalFlags struct {
	policy       string
	version      string
	caseFile     string
	paramsFile   string
	params       []string
	profileTypes []string
	missingData  string
	now          string
	trace        bool
	format       string
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a case against a policy",
	Long: `Evaluate one Case against a loaded policy version and print the decision.

The Case is read from a YAML or JSON file, or from stdin with --case -.
When --policy is omitted the only loaded policy is used. When --version is
omitted the latest version of the policy is used.

Examples:
  # Evaluate a case against the latest dress-code policy
  bdl eval --policy dress-code --case case.yaml

  # Pipe a JSON case and print the full trace
  echo '{"request":{"item":"JEANS"},"context":{"day_of_week":"FRIDAY"}}' | bdl eval --policy dress-code --case - --trace --format json

  # Evaluate under a custom profile
  bdl eval --policy expenses --case case.yaml --profile-types ALLOW,LIMIT --missing-data ask

  # Override params and the evaluation instant
  bdl eval --policy travel --case trip.yaml --param domestic_advance_days_2024=14 --now 2026-03-01T09:00:00Z`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalFlags.policy, "policy", "", "policy id (default: the only loaded policy)")
	evalCmd.Flags().StringVar(&evalFlags.version, "version", "", "policy version (default: latest)")
	evalCmd.Flags().StringVar(&evalFlags.caseFile, "case", "", "case file (YAML or JSON), - for stdin")
	evalCmd.Flags().StringVar(&evalFlags.paramsFile, "params", "", "params file (YAML or JSON)")
	evalCmd.Flags().StringArrayVar(&evalFlags.params, "param", nil, "param override name=value (repeatable)")
	evalCmd.Flags().StringSliceVar(&evalFlags.profileTypes, "profile-types", nil, "statement types to evaluate (default: profile from config)")
	evalCmd.Flags().StringVar(&evalFlags.missingData, "missing-data", "", "missing data behavior: enforce, ask, ignore")
	evalCmd.Flags().StringVar(&evalFlags.now, "now", "", "evaluation instant (date or datetime, default: current time)")
	evalCmd.Flags().BoolVar(&evalFlags.trace, "trace", false, "include the evaluation trace")
	evalCmd.Flags().StringVar(&evalFlags.format, "format", "text", "output format: text, json")

	if err := evalCmd.MarkFlagRequired("case"); err != nil {
		panic(fmt.Sprintf("failed to mark case flag as required: %v", err))
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(evalFlags.format, cli.FormatText, cli.FormatJSON)
	if err != nil {
		return err
	}

	req, err := buildEvalRequest(cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{audit: true, load: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if req.Profile != nil {
		req.Profile = mergeProfile(a.engine.Config().DefaultProfile, req.Profile)
	}

	resp, err := a.service.EvaluateCase(ctx, req)
	if err != nil {
		return cli.NewCommandError("eval", err)
	}

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(stdout, resp)
	}
	return printDecision(stdout, resp)
}

// buildEvalRequest assembles the request from flags. stdin is read when the
// case file is "-".
func buildEvalRequest(stdin io.Reader) (*decision.EvaluateRequest, error) {
	req := &decision.EvaluateRequest{
		PolicyID:     evalFlags.policy,
		Version:      evalFlags.version,
		IncludeTrace: evalFlags.trace,
	}

	c, err := readDocument(evalFlags.caseFile, stdin)
	if err != nil {
		return nil, cli.NewConfigError("case", err.Error())
	}
	req.Case = c

	if evalFlags.paramsFile != "" {
		p, err := readDocument(evalFlags.paramsFile, stdin)
		if err != nil {
			return nil, cli.NewConfigError("params", err.Error())
		}
		req.Params = p
	}
	for _, kv := range evalFlags.params {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, cli.NewConfigError("param", fmt.Sprintf("expected name=value, got %q", kv))
		}
		var v interface{}
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		if req.Params == nil {
			req.Params = make(map[string]interface{})
		}
		req.Params[name] = v
	}

	if len(evalFlags.profileTypes) > 0 || evalFlags.missingData != "" {
		p := &engine.Profile{Name: "cli"}
		for _, t := range evalFlags.profileTypes {
			st := ast.StatementType(strings.ToUpper(strings.TrimSpace(t)))
			if !st.IsValid() {
				return nil, cli.NewConfigError("profile-types", fmt.Sprintf("unknown statement type %q", t))
			}
			p.EvaluateTypes = append(p.EvaluateTypes, st)
		}
		p.MissingDataBehavior = engine.MissingDataBehavior(strings.ToLower(evalFlags.missingData))
		req.Profile = p
	}

	if evalFlags.now != "" {
		t, err := temporal.ParseString(evalFlags.now)
		if err != nil {
			return nil, cli.NewConfigError("now", err.Error())
		}
		req.Now = &t
	}
	return req, nil
}

// mergeProfile fills the parts of p not given on the command line from base.
func mergeProfile(base engine.Profile, p *engine.Profile) *engine.Profile {
	out := *p
	if len(out.EvaluateTypes) == 0 {
		out.EvaluateTypes = base.EvaluateTypes
	}
	if out.MissingDataBehavior == "" {
		out.MissingDataBehavior = base.MissingDataBehavior
	}
	return &out
}

// readDocument decodes a YAML or JSON object from path, or from stdin when
// path is "-".
func readDocument(path string, stdin io.Reader) (map[string]interface{}, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

func printDecision(w io.Writer, resp *decision.EvaluateResponse) error {
	t := &cli.Table{}
	t.Append("Policy:", resp.Policy.String())
	t.Append("Verdict:", string(resp.Verdict))
	t.Append("Reason codes:", joinOrDash(resp.ReasonCodes))
	t.Append("Required fields:", joinOrDash(resp.RequiredFields))
	if len(resp.Tags) > 0 {
		t.Append("Tags:", strings.Join(resp.Tags, ", "))
	}
	for _, r := range resp.Routes {
		route := r.To
		if r.SLAHours != nil {
			route += fmt.Sprintf(" (SLA %gh)", *r.SLAHours)
		}
		t.Append("Route:", route)
	}
	t.Append("Trace ID:", resp.TraceID)
	if err := cli.NewFormatter(cli.FormatText).FormatTo(w, t); err != nil {
		return err
	}

	if resp.Trace == nil {
		return nil
	}
	fmt.Fprintln(w)
	return printStatements(w, resp.Trace)
}

// printStatements renders the statement table of a trace. The winning
// statement is marked with "*".
func printStatements(w io.Writer, tr *engine.Trace) error {
	fmt.Fprintf(w, "Trace (now %s, %s):\n", tr.Now.Format(time.RFC3339), tr.Duration)
	st := &cli.Table{Headers: []string{"STATEMENT", "TYPE", "PRIORITY", "STATUS", "BUCKET", "ORIGIN"}}
	for _, s := range tr.Statements {
		status := string(s.Status)
		if s.SkipReason != "" {
			status += " (" + string(s.SkipReason) + ")"
		}
		id := s.ID
		if s.ID == tr.Winner {
			id += " *"
		}
		st.Append(id, string(s.Type), fmt.Sprint(s.Priority), status, dash(string(s.Bucket)), s.Origin.String())
	}
	return cli.NewFormatter(cli.FormatText).FormatTo(w, st)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// commandContext returns the command's context, which Execute cancels on
// SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
