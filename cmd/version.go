package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const versionTemplate = `utf8mb4-convert {{.Version}}
`

// Version is set at build time via ldflags
var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print utf8mb4-convert version and supported MySQL versions",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "utf8mb4-convert %s (commit: %s, built: %s)\n\n", Version, CommitSHA, BuildDate)
		fmt.Fprintln(out, "Supported servers:")
		fmt.Fprintln(out, "  • MySQL 8.0 / 8.4 (including Percona Server and Aurora MySQL 3)")
		fmt.Fprintln(out, "  • MySQL 5.7 and MariaDB with --collation utf8mb4_unicode_ci")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Enable the standard --version flag, matching the `version` subcommand output.
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, CommitSHA, BuildDate)
	rootCmd.SetVersionTemplate(versionTemplate)
}
