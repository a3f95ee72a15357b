package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dukerupert/comptoir/internal/bootstrap"
	"github.com/dukerupert/comptoir/internal/domain"
)

func newSequenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect document numbering sequences",
	}

	var (
		org     string
		docType string
		year    int
	)
	peek := &cobra.Command{
		Use:   "peek",
		Short: "Print the last number issued in a scope without allocating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(org)
			if err != nil {
				return fmt.Errorf("invalid --org: %w", err)
			}
			dt := domain.DocumentType(docType)
			if !dt.Valid() {
				return fmt.Errorf("invalid --type %q, expected invoice or quote", docType)
			}

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				last, err := app.Allocator.Peek(ctx, app.Store, orgID, dt, int32(year))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d: last issued %d\n", orgID, dt, year, last)
				return nil
			})
		},
	}
	peek.Flags().StringVar(&org, "org", "", "organization id")
	peek.Flags().StringVar(&docType, "type", string(domain.DocumentTypeInvoice), "document type: invoice or quote")
	peek.Flags().IntVar(&year, "year", time.Now().UTC().Year(), "numbering year")
	_ = peek.MarkFlagRequired("org")

	cmd.AddCommand(peek)
	return cmd
}
