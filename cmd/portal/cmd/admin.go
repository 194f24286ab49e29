package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/portal/internal/portal"
)

func newAdminCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin account",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(newAdminCreateCommand(opts), newAdminResetPasswordCommand(opts))
	return cmd
}

func newAdminCreateCommand(opts *rootOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the ADMIN profile and the admin user when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd.Context(), func(ctx context.Context, svc *portal.Service) error {
				if err := svc.Migrate(ctx); err != nil {
					return err
				}
				res, err := svc.EnsureAdmin(ctx, password)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !res.Created {
					fmt.Fprintf(out, "User %s already exists\n", res.User.Login)
					return nil
				}
				fmt.Fprintf(out, "User %s created\n", res.User.Login)
				if res.GeneratedPassword != "" {
					fmt.Fprintf(out, "Generated password: %s\n", res.GeneratedPassword)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password of the admin user, generated when empty")
	return cmd
}

func newAdminResetPasswordCommand(opts *rootOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for the admin user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd.Context(), func(ctx context.Context, svc *portal.Service) error {
				if err := svc.Migrate(ctx); err != nil {
					return err
				}
				generated, err := svc.ResetAdminPassword(ctx, password)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Admin password updated")
				if generated != "" {
					fmt.Fprintf(out, "Generated password: %s\n", generated)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "New password, generated when empty")
	return cmd
}
