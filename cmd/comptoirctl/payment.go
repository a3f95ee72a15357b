package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dukerupert/comptoir/internal/bootstrap"
	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/provider"
)

func newPaymentConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment-config",
		Short: "Manage per-organization payment processor credentials",
	}

	var org, secretKey, webhookSecret string
	set := &cobra.Command{
		Use:   "set",
		Short: "Encrypt and store an organization's Stripe keys",
		Long: `set validates the keys, encrypts them with ENCRYPTION_KEY and replaces
any credentials stored for the organization. Test mode follows the key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(org)
			if err != nil {
				return fmt.Errorf("invalid --org: %w", err)
			}
			creds := provider.Credentials{
				Provider:      provider.ProviderStripe,
				SecretKey:     secretKey,
				WebhookSecret: webhookSecret,
				TestMode:      strings.Contains(secretKey, "_test_"),
			}

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if _, err := app.Store.GetOrganization(ctx, postgres.UUID(orgID)); err != nil {
					return fmt.Errorf("organization %s not found: %w", orgID, err)
				}
				if err := app.Credentials.Save(ctx, orgID, creds); err != nil {
					if fields := domain.GetValidationFields(err); fields != nil {
						return fmt.Errorf("invalid credentials: %v", fields)
					}
					return err
				}
				mode := "live"
				if creds.TestMode {
					mode = "test"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %s credentials for %s\n", mode, orgID)
				return nil
			})
		},
	}
	set.Flags().StringVar(&org, "org", "", "organization id")
	set.Flags().StringVar(&secretKey, "secret-key", "", "Stripe secret or restricted key")
	set.Flags().StringVar(&webhookSecret, "webhook-secret", "", "Stripe webhook signing secret (whsec_...)")
	for _, name := range []string{"org", "secret-key", "webhook-secret"} {
		_ = set.MarkFlagRequired(name)
	}

	cmd.AddCommand(set)
	return cmd
}
