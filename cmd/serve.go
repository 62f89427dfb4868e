package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/msandoval/tradeterm/pkg/httpserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a headless session with an HTTP status surface",
	Long: `Connect to the gateway and serve the operational HTTP surface:

  /metrics             Prometheus metrics
  /health, /ready      liveness and readiness probes
  /api/orders/pending  pending orders, most recently updated first
  /api/trades          the per-account trade ledger
  /api/equity          the per-account portfolio value ledger

While serving, fills and account summaries keep the ledgers current, the
same as the watch command.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	cfg, logger, err := loadSetup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	server := httpserver.New(&httpserver.Config{
		Port:      cfg.HTTPPort,
		Logger:    logger,
		Registry:  s.registry,
		Trades:    s.store,
		EquityLog: s.equityLog,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	server.SetReady(true)
	logger.Info("serving", zap.String("port", cfg.HTTPPort))

	select {
	case err = <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		logger.Warn("http-shutdown-failed", zap.Error(err))
	}

	return nil
}
