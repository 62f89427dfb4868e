package cmd

import (
	"github.com/msandoval/tradeterm/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var sellCmd = &cobra.Command{
	Use:   "sell SYMBOL QUANTITY",
	Short: "Submit a market sell order",
	Long: `Submit a market sell order and wait for its outcome.

Examples:
  tradeterm sell TSLA 5
  tradeterm sell TSLA 5 --wait`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(cmd, args, types.Sell)
	},
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(sellCmd)
	sellCmd.Flags().Bool("wait", false, "Wait for fill confirmation instead of accepting on Submitted")
}
