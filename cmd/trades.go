package cmd

import (
	"fmt"
	"time"

	"github.com/msandoval/tradeterm/internal/broker"
	"github.com/msandoval/tradeterm/internal/history"
	"github.com/msandoval/tradeterm/pkg/config"
	"github.com/msandoval/tradeterm/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Show the trade ledger",
	Long: `Show the per-account trade ledger, ordered by execution time.

By default the command reads the persisted ledger only. With --sync it
connects to the gateway first, replays this session's execution details and
merges them into the ledger before printing.`,
	Args: cobra.NoArgs,
	RunE: runTrades,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.Flags().Bool("sync", false, "Fetch executions from the gateway before printing")
	tradesCmd.Flags().Int("limit", 50, "Maximum number of trades to print (0 = all)")
}

func runTrades(cmd *cobra.Command, args []string) (err error) {
	cfg, logger, err := loadSetup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := history.OpenStore(cfg.DataDir, cfg.GatewayAccount, logger)
	if err != nil {
		return fmt.Errorf("open trade ledger: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	sync, _ := cmd.Flags().GetBool("sync")
	if sync {
		err = syncExecutions(cmd, cfg, logger, store)
		if err != nil {
			return err
		}
	}

	trades := store.Trades()

	limit, _ := cmd.Flags().GetInt("limit")
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}

	if len(trades) == 0 {
		fmt.Println("No trades recorded.")
		return nil
	}

	fmt.Printf("%-22s %-8s %-5s %10s %10s %8s\n",
		"TIME", "SYMBOL", "SIDE", "QTY", "PRICE", "ORDER")
	for _, t := range trades {
		fmt.Printf("%-22s %-8s %-5s %10.2f %10.2f %8d\n",
			t.Time, t.Symbol, t.Side, t.Quantity, t.Price, t.OrderID)
	}

	return nil
}

// syncExecutions connects, requests the execution replay and merges what
// arrives within a short collection window.
func syncExecutions(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger, store *history.Store) error {
	ctx := cmd.Context()

	gw, err := connectGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = gw.Close()
	}()

	sub := gw.Events().Subscribe(executionFilter())
	defer sub.Cancel()

	err = gw.RequestExecutions(ctx)
	if err != nil {
		return fmt.Errorf("request executions: %w", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil
		case ev := <-sub.C:
			exec, ok := ev.(broker.Execution)
			if !ok {
				continue
			}
			store.Append(types.TradeRecord{
				ID:       exec.ExecID,
				Symbol:   exec.Symbol,
				Side:     exec.Side,
				Quantity: exec.Quantity,
				Price:    exec.Price,
				Time:     exec.Time,
				OrderID:  exec.OrderID,
			})
		}
	}
}
