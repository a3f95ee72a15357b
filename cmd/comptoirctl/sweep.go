package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/comptoir/internal/bootstrap"
	"github.com/dukerupert/comptoir/internal/jobs"
	"github.com/dukerupert/comptoir/internal/postgres"
)

func newSweepCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Enqueue the overdue sweep for every organization",
		Long: `sweep enqueues one mark_overdue job per organization for the given
day. The worker picks them up; a sweep already queued for the same day is
not duplicated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now().UTC()
			if date != "" {
				parsed, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
				}
				day = parsed
			}

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				ids, err := app.Store.ListOrganizationIDs(ctx)
				if err != nil {
					return fmt.Errorf("failed to list organizations: %w", err)
				}
				for _, id := range ids {
					if err := jobs.EnqueueMarkOverdue(ctx, app.Store, postgres.FromUUID(id), day.Format(time.DateOnly)); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued overdue sweep for %s across %d organizations\n", day.Format(time.DateOnly), len(ids))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "sweep date as YYYY-MM-DD (default today, UTC)")
	return cmd
}
