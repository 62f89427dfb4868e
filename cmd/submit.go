package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/msandoval/tradeterm/internal/broker"
	"github.com/msandoval/tradeterm/internal/history"
	"github.com/msandoval/tradeterm/internal/orders"
	"github.com/msandoval/tradeterm/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runSubmit is the shared body of the buy and sell commands.
func runSubmit(cmd *cobra.Command, args []string, action types.OrderAction) (err error) {
	cfg, logger, err := loadSetup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	symbol := args[0]
	quantity, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parse quantity %q: %w", args[1], err)
	}

	waitForFill, _ := cmd.Flags().GetBool("wait")

	ctx := cmd.Context()

	gw, err := connectGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = gw.Close()
	}()

	// Keep the trade ledger current with any fills this submission causes.
	store, err := history.OpenStore(cfg.DataDir, cfg.GatewayAccount, logger)
	if err != nil {
		return fmt.Errorf("open trade ledger: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	execSub := gw.Events().Subscribe(executionFilter())
	defer execSub.Cancel()
	go mergeExecutions(ctx, execSub, store)

	placer := orders.NewPlacer(&orders.PlacerConfig{
		Conn:           gw,
		Logger:         logger,
		IDTimeout:      cfg.OrderIDTimeout,
		ResolveTimeout: cfg.OrderResolveTimeout,
	})

	req := orders.Request{Symbol: symbol, Action: action, Quantity: quantity}

	var outcome *types.Outcome
	if waitForFill {
		outcome, err = placer.SubmitAndWait(ctx, req)
	} else {
		outcome, err = placer.Submit(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}

	printOutcome(outcome)

	logger.Info("submission-complete",
		zap.Int64("order-id", outcome.OrderID),
		zap.String("status", string(outcome.Status)))

	return nil
}

func printOutcome(o *types.Outcome) {
	fmt.Printf("Order %d: %s\n", o.OrderID, o.Status)
	if o.Filled > 0 {
		fmt.Printf("  filled %.2f @ %.2f\n", o.Filled, o.AvgFillPrice)
	}
	if o.Warning != nil {
		if t, ok := o.Warning.UntilTime(); ok {
			fmt.Printf("  warning: %s (routes at %s)\n", o.Warning.Kind, t.Format("Mon 15:04"))
		} else {
			fmt.Printf("  warning: %s\n", o.Warning.Kind)
		}
	}
	if o.RejectionReason != "" {
		fmt.Printf("  rejected: %s\n", o.RejectionReason)
	}
}

// executionFilter matches execution events only.
func executionFilter() func(ev broker.Event) bool {
	return func(ev broker.Event) bool {
		_, ok := ev.(broker.Execution)
		return ok
	}
}

// mergeExecutions appends fills from the live session to the trade ledger
// as they are reported.
func mergeExecutions(ctx context.Context, sub *broker.Subscription, store *history.Store) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
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
