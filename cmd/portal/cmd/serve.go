package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web application",
		Long: `Run the web application until SIGINT or SIGTERM. Pending migrations are
applied and the built-in profiles created on startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApplication(true)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()
			return a.Run()
		},
	}
}
