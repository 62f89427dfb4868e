package cmd

import (
	"fmt"
	"strconv"

	"github.com/msandoval/tradeterm/internal/orders"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var cancelCmd = &cobra.Command{
	Use:   "cancel ORDER_ID",
	Short: "Cancel a pending order",
	Long: `Cancel a pending order and wait (bounded) for the broker to
confirm the cancellation.

Example:
  tradeterm cancel 42`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) (err error) {
	cfg, logger, err := loadSetup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	orderID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parse order id %q: %w", args[0], err)
	}

	ctx := cmd.Context()

	gw, err := connectGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = gw.Close()
	}()

	registry := orders.NewRegistry(&orders.RegistryConfig{
		Conn:            gw,
		Logger:          logger,
		CancelTimeout:   cfg.CancelTimeout,
		SnapshotTimeout: cfg.SnapshotTimeout,
	})

	result, err := registry.Cancel(ctx, orderID)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}

	fmt.Printf("Order %d: %s\n", result.OrderID, result.Status)

	return nil
}
