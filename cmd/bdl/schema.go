package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/bdl/pkg/cli"
)

var schemaFlags struct {
	policy  string
	version string
	part    string
	format  string
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the input schema of a policy",
	Long: `Print the JSON Schema of the Case and params a policy version reads.

The case schema lists every field the policy's statements read, with the type
inferred from the values they are compared against. Fields written by DEFINE
statements are derived and not part of the Case.

Parts:
  all      case schema, params schema and field list (default)
  case     JSON Schema of the Case
  params   JSON Schema of the params
  fields   field list (text or json)

Examples:
  # Case schema of the latest expenses policy
  bdl schema --policy expenses --part case

  # Fields read by a specific version
  bdl schema --policy travel --version 2.0.0 --part fields --format text`,
	RunE: showSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().StringVar(&schemaFlags.policy, "policy", "", "policy id (default: the only loaded policy)")
	schemaCmd.Flags().StringVar(&schemaFlags.version, "version", "", "policy version (default: latest)")
	schemaCmd.Flags().StringVar(&schemaFlags.part, "part", "all", "schema part: all, case, params, fields")
	schemaCmd.Flags().StringVar(&schemaFlags.format, "format", "json", "output format for fields: json, text, csv")
}

func showSchema(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(schemaFlags.format)
	if err != nil {
		return err
	}
	part := strings.ToLower(schemaFlags.part)
	switch part {
	case "all", "case", "params", "fields":
	default:
		return cli.NewConfigError("part", fmt.Sprintf("unknown part %q (valid: all, case, params, fields)", schemaFlags.part))
	}
	if part != "fields" && format != cli.FormatJSON {
		return cli.NewConfigError("format", "only the fields part renders as "+string(format))
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, appOptions{load: true})
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.service.GetSchema(schemaFlags.policy, schemaFlags.version)
	if err != nil {
		return cli.NewCommandError("schema", err)
	}

	var out interface{}
	switch part {
	case "all":
		out = s
	case "case":
		out = s.Case
	case "params":
		out = s.Params
	case "fields":
		if format == cli.FormatJSON {
			out = s.Fields
			break
		}
		t := &cli.Table{Headers: []string{"PATH", "TYPE", "REQUIRED", "STATEMENTS"}}
		for _, f := range s.Fields {
			required := ""
			if f.Required {
				required = "yes"
			}
			t.Append(f.Path, dash(strings.Join(f.Types, "|")), required, strings.Join(f.Statements, ","))
		}
		out = t
	}
	return cli.NewFormatter(format).FormatTo(stdout, out)
}
