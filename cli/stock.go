package cli

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"gofalre.io/fuelstock/driver"
)

func newLevelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "Show quantity and reorder level for every product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.ledger.ListItems(cmd.Context())
			if err != nil {
				return fmt.Errorf("list stock: %w", err)
			}

			if opts.jsonOutput {
				return renderJSON(cmd, items)
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderLevels(items))
			return nil
		},
	}
}

func newAlertsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List products at or below their reorder level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			alerts, err := a.ledger.LowStockAlerts(cmd.Context())
			if err != nil {
				return fmt.Errorf("low stock alerts: %w", err)
			}

			if opts.jsonOutput {
				return renderJSON(cmd, alerts)
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderAlerts(alerts))
			return nil
		},
	}
}

func newMovementsCmd(opts *rootOptions) *cobra.Command {
	var limit, offset uint64

	cmd := &cobra.Command{
		Use:   "movements <product>",
		Short: "Show the ledger history of a product, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			movements, err := a.ledger.StockMovements(cmd.Context(), args[0], limit, offset)
			if err != nil {
				return fmt.Errorf("stock movements: %w", err)
			}

			if opts.jsonOutput {
				return renderJSON(cmd, movements)
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderMovements(args[0], movements))
			return nil
		},
	}

	cmd.Flags().Uint64Var(&limit, "limit", 50, "Maximum number of movements")
	cmd.Flags().Uint64Var(&offset, "offset", 0, "Number of movements to skip")

	return cmd
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the schema and the bootstrap products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err = driver.Migrate(cmd.Context(), a.db.Pool); err != nil {
				return err
			}
			if err = a.ledger.Bootstrap(cmd.Context()); err != nil {
				return fmt.Errorf("bootstrap stock: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("stock table ready"))
			return nil
		},
	}
}

func parseLitres(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s must be numeric: %q", field, raw)
	}
	return d, nil
}

func renderJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
