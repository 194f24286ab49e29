package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/portal/internal/portal"
)

func newDBCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the database schema",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(newDBMigrateCommand(opts), newDBInitCommand(opts))
	return cmd
}

func newDBMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd.Context(), func(ctx context.Context, svc *portal.Service) error {
				if err := svc.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
				return nil
			})
		},
	}
}

func newDBInitCommand(opts *rootOptions) *cobra.Command {
	var initOpts portal.InitOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema, the built-in profiles and the admin user",
		Long: `Create the schema, the ADMIN and USUARIO profiles and the admin user.
A database that already holds users is refused unless --force is given, which
drops every portal table first. Without --admin-password (or
portal.admin_password) a password is generated and printed once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd.Context(), func(ctx context.Context, svc *portal.Service) error {
				res, err := svc.InitDatabase(ctx, initOpts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Database initialized")
				if res.GeneratedPassword != "" {
					fmt.Fprintf(out, "Generated password for %s: %s\n", res.User.Login, res.GeneratedPassword)
				}
				if initOpts.WithSample {
					fmt.Fprintln(out, "Sample project and incident created")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&initOpts.Force, "force", false, "Drop every portal table before creating the schema")
	cmd.Flags().BoolVar(&initOpts.WithSample, "with-sample", false, "Create an example project and incident")
	cmd.Flags().StringVar(&initOpts.AdminPassword, "admin-password", "", "Password of the admin user")
	return cmd
}
