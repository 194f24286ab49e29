package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/portal/internal/portal"
)

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed users|projects|tasks|all",
		Short: "Insert demo data",
		Long: `Insert the demo users, projects or tasks. Users are skipped when more than
one user exists, projects when any project exists and tasks when any task
exists or no project or active user is available.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{portal.SeedUsers, portal.SeedProjects, portal.SeedTasks, portal.SeedAll},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd.Context(), func(ctx context.Context, svc *portal.Service) error {
				if err := svc.Migrate(ctx); err != nil {
					return err
				}
				results, err := svc.Seed(ctx, args[0])
				out := cmd.OutOrStdout()
				for _, res := range results {
					if res.Skipped != "" {
						fmt.Fprintf(out, "%s: skipped, %s\n", res.Set, res.Skipped)
						continue
					}
					fmt.Fprintf(out, "%s: %d created\n", res.Set, res.Created)
				}
				return err
			})
		},
	}
}
