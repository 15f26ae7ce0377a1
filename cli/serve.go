package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gofalre.io/fuelstock"
	"gofalre.io/fuelstock/driver"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply workflow messages from NATS and poll low stock alerts",
		Long:  "Migrate the schema, seed the bootstrap products, consume sale/purchase/reorder messages and poll low stock alerts until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err = driver.Migrate(ctx, a.db.Pool); err != nil {
				return err
			}
			if err = a.ledger.Bootstrap(ctx); err != nil {
				return fmt.Errorf("bootstrap stock: %w", err)
			}

			if a.nats != nil {
				if err = a.ledger.Listen(a.cfg.Workers.Size); err != nil {
					return err
				}
				a.logger.Info("listening for workflow messages",
					zap.String("subject", fuelstock.WorkflowSubject),
					zap.Int("workers", a.cfg.Workers.Size))
			} else {
				a.logger.Warn("nats not configured, workflow messages disabled")
			}

			monitor := fuelstock.NewAlertMonitor(a.ledger, a.cfg.Alerts.PollInterval, a.logger)
			if err = monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			a.logger.Info("shutting down")
			return nil
		},
	}
}
