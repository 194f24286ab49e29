package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information, set at build time
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion returns the version line
func PrintVersion() string {
	return fmt.Sprintf("portal %s (commit: %s, built on: %s)", Version, Commit, Date)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	}
}
