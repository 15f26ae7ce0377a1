package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// ErrSaleRefused is returned by `sell` when the sale would drop stock below the reorder level.
var ErrSaleRefused = errors.New("sale refused")

func newSellCmd(opts *rootOptions) *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "sell <product> <litres>",
		Short: "Debit a sale if it keeps stock at or above the reorder level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			litres, err := parseLitres("litres", args[1])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			check := a.ledger.SellWithAdmission
			if checkOnly {
				check = a.ledger.CheckSaleAdmission
			}
			admission, err := check(cmd.Context(), args[0], litres)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				if err = renderJSON(cmd, admission); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), RenderAdmission(admission, checkOnly))
			}

			if !admission.Allowed {
				return fmt.Errorf("%w: %s", ErrSaleRefused, admission.Reason())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check admission, do not debit")

	return cmd
}

func newPurchaseCmd(opts *rootOptions) *cobra.Command {
	var defaultReorder string

	cmd := &cobra.Command{
		Use:   "purchase <product> <litres>",
		Short: "Credit a purchase, creating the product if it is not tracked yet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			litres, err := parseLitres("litres", args[1])
			if err != nil {
				return err
			}
			var reorder *decimal.Decimal
			if defaultReorder != "" {
				d, err := parseLitres("default reorder level", defaultReorder)
				if err != nil {
					return err
				}
				reorder = &d
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			level := a.ledger.DefaultReorderLevel()
			if reorder != nil {
				level = *reorder
			}
			if err = a.ledger.ApplyAtPurchase(cmd.Context(), args[0], litres, level); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("credited %sL of %s", litres, args[0])))
			return nil
		},
	}

	cmd.Flags().StringVar(&defaultReorder, "default-reorder", "", "Reorder level for a product created by this purchase")

	return cmd
}

func newReorderCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <product> <level>",
		Short: "Set the reorder level of a tracked product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLitres("reorder level", args[1])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err = a.ledger.UpdateReorderLevel(cmd.Context(), args[0], level); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("reorder level for %s set to %sL", args[0], level)))
			return nil
		},
	}
}
