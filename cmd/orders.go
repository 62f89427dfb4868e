package cmd

import (
	"fmt"
	"time"

	"github.com/msandoval/tradeterm/internal/orders"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List pending orders",
	Long: `List all currently pending orders, most recently updated first.

The view covers orders placed elsewhere or in earlier sessions, not just
ones submitted by this process.`,
	Args: cobra.NoArgs,
	RunE: runOrders,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(ordersCmd)
}

func runOrders(cmd *cobra.Command, args []string) (err error) {
	cfg, logger, err := loadSetup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

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

	err = registry.Start(ctx)
	if err != nil {
		return fmt.Errorf("start registry: %w", err)
	}
	defer registry.Stop()

	// Wait for the snapshot to finish loading (bounded by the registry's
	// own snapshot timeout).
	for registry.Loading() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	pending := registry.Pending()
	if len(pending) == 0 {
		fmt.Println("No pending orders.")
		return nil
	}

	fmt.Printf("%-8s %-8s %-5s %8s %10s %10s %8s\n",
		"ID", "SYMBOL", "SIDE", "QTY", "FILLED", "AVG PRICE", "STATUS")
	for _, o := range pending {
		fmt.Printf("%-8d %-8s %-5s %8d %10.2f %10.2f %8s\n",
			o.ID, o.Symbol, o.Action, o.Quantity, o.Filled, o.AvgFillPrice, o.Status)
	}

	return nil
}
