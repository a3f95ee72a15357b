// Command comptoirctl runs operational tasks against the Comptoir database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/comptoir/internal"
	"github.com/dukerupert/comptoir/internal/bootstrap"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "comptoirctl",
	Short: "Operate a Comptoir deployment",
	Long: `comptoirctl applies migrations, schedules overdue sweeps, inspects
numbering sequences and stores per-organization payment credentials.

Configuration is read from the environment and .env, like the server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(newMigrateCmd(), newSweepCmd(), newSequenceCmd(), newPaymentConfigCmd())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withApp loads configuration, opens the application and hands it to fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel, "comptoirctl")
	slog.SetDefault(logger)

	app, err := bootstrap.New(cmd.Context(), cfg, logger)
	defer app.Close()
	if err != nil {
		return err
	}
	return fn(cmd.Context(), app)
}
