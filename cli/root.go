package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"gofalre.io/fuelstock/config"
)

var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
	debug      bool
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "fuelstock",
		Short:         "Fuel stock ledger",
		Long:          "fuelstock tracks litres on hand per product, enforces reorder levels on sales and reports low stock.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultFile, "Path to the YAML config file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Development logging")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newLevelsCmd(opts))
	cmd.AddCommand(newAlertsCmd(opts))
	cmd.AddCommand(newMovementsCmd(opts))
	cmd.AddCommand(newSellCmd(opts))
	cmd.AddCommand(newPurchaseCmd(opts))
	cmd.AddCommand(newReorderCmd(opts))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fuelstock %s (%s)\n", version, commit)
		},
	}
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}
