package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dukerupert/comptoir/internal"
	"github.com/dukerupert/comptoir/internal/bootstrap"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				return internal.RunMigrations(ctx, app.SQLDB(), app.Logger)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and when they were applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				return internal.PrintMigrationStatus(ctx, app.SQLDB(), cmd.OutOrStdout())
			})
		},
	})

	return cmd
}
