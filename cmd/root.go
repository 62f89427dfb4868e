package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "tradeterm",
	Short: "Terminal front-end for a brokerage account",
	Long: `tradeterm is a terminal front-end for one brokerage account.

It submits market orders through the brokerage gateway and tracks each one
to a single resolved outcome, maintains a live view of all pending orders,
and keeps durable per-account ledgers of executed trades and portfolio
value.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
