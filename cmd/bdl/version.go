package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"mercator-hq/bdl/pkg/cli"
	"mercator-hq/bdl/pkg/telemetry/health"
)

// Stamped at link time with -ldflags "-X main.Version=...".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cli.ParseFormat(versionFormat, cli.FormatText, cli.FormatJSON)
		if err != nil {
			return err
		}
		return writeVersion(stdout, format)
	},
}

func init() {
	versionCmd.Flags().StringVarP(&versionFormat, "output", "o", "text", "output format: text or json")
	rootCmd.AddCommand(versionCmd)
}

// buildInfo is the same document the server exposes on /version.
func buildInfo() health.VersionInfo {
	return health.VersionInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
		GoVersion: runtime.Version(),
	}
}

func writeVersion(w io.Writer, format cli.OutputFormat) error {
	info := buildInfo()
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(w, info)
	}
	_, err := fmt.Fprintf(w, "bdl %s\n  commit:   %s\n  built:    %s\n  go:       %s\n  platform: %s/%s\n",
		info.Version, info.Commit, info.BuildTime, info.GoVersion, runtime.GOOS, runtime.GOARCH)
	return err
}
