package cmd

import (
	"context"
	"fmt"

	"github.com/msandoval/tradeterm/internal/broker"
	"github.com/msandoval/tradeterm/internal/history"
	"github.com/msandoval/tradeterm/internal/orders"
	"github.com/msandoval/tradeterm/pkg/config"
	"go.uber.org/zap"
)

// session wires a live broker connection to the registry and the ledgers:
// execution details stream into the trade ledger and account summaries into
// the equity ledger for as long as the session is up.
type session struct {
	gw        *broker.Gateway
	registry  *orders.Registry
	store     *history.Store
	equityLog *history.EquityLog

	subs []*broker.Subscription
}

func openSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*session, error) {
	gw, err := connectGateway(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := history.OpenStore(cfg.DataDir, cfg.GatewayAccount, logger)
	if err != nil {
		_ = gw.Close()
		return nil, fmt.Errorf("open trade ledger: %w", err)
	}

	equityLog, err := history.OpenEquityLog(cfg.DataDir, cfg.GatewayAccount, history.EquityConfig{
		MinInterval: cfg.EquityMinInterval,
		MinMove:     cfg.EquityMinMove,
		MinMovePct:  cfg.EquityMinMovePct,
		MaxPoints:   cfg.EquityMaxPoints,
	}, logger)
	if err != nil {
		_ = store.Close()
		_ = gw.Close()
		return nil, fmt.Errorf("open equity ledger: %w", err)
	}

	registry := orders.NewRegistry(&orders.RegistryConfig{
		Conn:            gw,
		Logger:          logger,
		CancelTimeout:   cfg.CancelTimeout,
		SnapshotTimeout: cfg.SnapshotTimeout,
	})

	err = registry.Start(ctx)
	if err != nil {
		_ = equityLog.Close()
		_ = store.Close()
		_ = gw.Close()
		return nil, fmt.Errorf("start registry: %w", err)
	}

	s := &session{
		gw:        gw,
		registry:  registry,
		store:     store,
		equityLog: equityLog,
	}

	execSub := gw.Events().Subscribe(executionFilter())
	s.subs = append(s.subs, execSub)
	go mergeExecutions(ctx, execSub, store)

	acctSub := gw.Events().Subscribe(func(ev broker.Event) bool {
		_, ok := ev.(broker.AccountSummary)
		return ok
	})
	s.subs = append(s.subs, acctSub)
	go recordEquity(ctx, acctSub, equityLog)

	// Replay this session's executions so restarts pick up fills that
	// happened while we were away.
	err = gw.RequestExecutions(ctx)
	if err != nil {
		logger.Warn("request-executions-failed", zap.Error(err))
	}

	return s, nil
}

func (s *session) close() {
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.registry.Stop()
	_ = s.equityLog.Close()
	_ = s.store.Close()
	_ = s.gw.Close()
}

// recordEquity feeds account summaries into the throttled equity ledger.
func recordEquity(ctx context.Context, sub *broker.Subscription, equityLog *history.EquityLog) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			summary, ok := ev.(broker.AccountSummary)
			if !ok {
				continue
			}
			equityLog.Record(summary.NetLiquidation, summary.Cash)
		}
	}
}

// describeEvent renders one event for the watch console.
func describeEvent(ev broker.Event) (string, bool) {
	switch e := ev.(type) {
	case broker.OrderStatus:
		return fmt.Sprintf("order %d: %s (filled %.2f, remaining %.2f)",
			e.OrderID, e.Status, e.Filled, e.Remaining), true
	case broker.Execution:
		return fmt.Sprintf("fill %s: %s %.2f %s @ %.2f",
			e.ExecID, e.Side, e.Quantity, e.Symbol, e.Price), true
	case broker.Error:
		return fmt.Sprintf("broker message %d: %s", e.Code, e.Message), true
	case broker.AccountSummary:
		return fmt.Sprintf("account %s: net liquidation %.2f", e.Account, e.NetLiquidation), true
	default:
		return "", false
	}
}
