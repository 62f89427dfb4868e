package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesAppendedTotal tracks records added to the trade ledger.
	TradesAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_history_trades_appended_total",
		Help: "Total number of trade records appended to the ledger",
	})

	// TradesDedupedTotal tracks appends skipped as exact duplicates.
	TradesDedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_history_trades_deduped_total",
		Help: "Total number of trade appends skipped as duplicates",
	})

	// EquityPointsRecordedTotal tracks persisted portfolio samples.
	EquityPointsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_history_equity_points_recorded_total",
		Help: "Total number of portfolio value samples recorded",
	})

	// EquityPointsThrottledTotal tracks samples skipped by the throttle.
	EquityPointsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_history_equity_points_throttled_total",
		Help: "Total number of portfolio value samples skipped by throttling",
	})

	// LedgerWriteErrorsTotal tracks swallowed persistence failures.
	LedgerWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_history_ledger_write_errors_total",
		Help: "Total number of ledger write failures (logged and swallowed)",
	})
)
