package cmd

import (
	"fmt"
	"time"

	"github.com/msandoval/tradeterm/internal/history"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var equityCmd = &cobra.Command{
	Use:   "equity",
	Short: "Show recorded portfolio value samples",
	Long: `Show the per-account portfolio value ledger.

Samples are recorded during live sessions (see the watch and serve
commands); this command prints the persisted history.`,
	Args: cobra.NoArgs,
	RunE: runEquity,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(equityCmd)
	equityCmd.Flags().Int("limit", 20, "Maximum number of samples to print (0 = all)")
}

func runEquity(cmd *cobra.Command, args []string) (err error) {
	cfg, logger, err := loadSetup()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	equityLog, err := history.OpenEquityLog(cfg.DataDir, cfg.GatewayAccount, history.EquityConfig{
		MinInterval: cfg.EquityMinInterval,
		MinMove:     cfg.EquityMinMove,
		MinMovePct:  cfg.EquityMinMovePct,
		MaxPoints:   cfg.EquityMaxPoints,
	}, logger)
	if err != nil {
		return fmt.Errorf("open equity ledger: %w", err)
	}
	defer func() {
		_ = equityLog.Close()
	}()

	points := equityLog.Points()

	limit, _ := cmd.Flags().GetInt("limit")
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}

	if len(points) == 0 {
		fmt.Println("No portfolio samples recorded.")
		return nil
	}

	fmt.Printf("%-22s %14s %14s\n", "TIME", "NET LIQ", "CASH")
	for _, p := range points {
		cash := "-"
		if p.Cash != nil {
			cash = fmt.Sprintf("%.2f", *p.Cash)
		}
		fmt.Printf("%-22s %14.2f %14s\n",
			time.UnixMilli(p.TS).Format("2006-01-02 15:04:05"),
			p.NetLiquidation, cash)
	}

	return nil
}
