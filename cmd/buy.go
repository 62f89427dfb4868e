package cmd

import (
	"github.com/msandoval/tradeterm/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var buyCmd = &cobra.Command{
	Use:   "buy SYMBOL QUANTITY",
	Short: "Submit a market buy order",
	Long: `Submit a market buy order and wait for its outcome.

The command resolves as soon as the broker accepts the order (Submitted or
PreSubmitted), even when the market is closed and the order will route
later. Use --wait to keep listening until the order fills, cancels or goes
inactive.

Examples:
  tradeterm buy AAPL 10
  tradeterm buy AAPL 10 --wait`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(cmd, args, types.Buy)
	},
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(buyCmd)
	buyCmd.Flags().Bool("wait", false, "Wait for fill confirmation instead of accepting on Submitted")
}
