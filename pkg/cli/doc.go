/*
Package cli provides the output, progress and signal helpers used by the bdl
command.

Output Formatting:

Commands print results as text, JSON or CSV. Tabular results use Table so
that every format renders them:

	table := &cli.Table{Headers: []string{"POLICY", "VERSION"}}
	table.Append("expenses", "2.1.0")
	if err := cli.NewFormatter(cli.FormatCSV).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

Long loops report progress on a terminal and stay silent otherwise:

	progress := cli.NewProgressReporter(os.Stderr, "policies")
	progress.Start(int64(len(policies)))
	for i := range policies {
		// Do work
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Exit Codes:

A command that completes but must fail the process (failing tests, lint
errors) returns an *ExitError; ExitCode maps any error to a status.
*/
package cli
