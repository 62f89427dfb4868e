package history

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/msandoval/tradeterm/pkg/types"
	"go.uber.org/zap"
)

// EquityLog is the per-account ledger of (timestamp, net-liquidation, cash)
// samples. Recording is throttled so storage stays bounded during market
// hours while meaningful moves are still captured quickly; the in-memory
// view is capped, the backing file keeps the full history.
type EquityLog struct {
	logger *zap.Logger
	app    *appender

	minInterval time.Duration
	minMove     float64
	minMovePct  float64
	maxPoints   int

	now func() time.Time

	mu     sync.RWMutex
	points []types.EquityPoint // non-decreasing TS
}

// EquityConfig holds equity ledger configuration.
type EquityConfig struct {
	MinInterval time.Duration // default 5m
	MinMove     float64       // default 50 currency units
	MinMovePct  float64       // default 0.001 (0.1%)
	MaxPoints   int           // default 50000
}

// OpenEquityLog opens (and loads) the equity ledger for one account.
func OpenEquityLog(dir, account string, cfg EquityConfig, logger *zap.Logger) (*EquityLog, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 5 * time.Minute
	}
	if cfg.MinMove <= 0 {
		cfg.MinMove = 50.0
	}
	if cfg.MinMovePct <= 0 {
		cfg.MinMovePct = 0.001
	}
	if cfg.MaxPoints <= 0 {
		cfg.MaxPoints = 50000
	}

	path := filepath.Join(dir, accountKey(account)+".equity.jsonl")

	l := &EquityLog{
		logger:      logger,
		minInterval: cfg.MinInterval,
		minMove:     cfg.MinMove,
		minMovePct:  cfg.MinMovePct,
		maxPoints:   cfg.MaxPoints,
		now:         time.Now,
	}

	err = l.load(path)
	if err != nil {
		return nil, err
	}

	l.app = newAppender(path, logger)

	logger.Info("equity-ledger-loaded",
		zap.String("path", path),
		zap.Int("points", len(l.points)))

	return l, nil
}

func (l *EquityLog) load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	byTS := make(map[int64]types.EquityPoint)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var p types.EquityPoint
		err := json.Unmarshal(line, &p)
		if err != nil {
			l.logger.Warn("equity-line-skipped", zap.Error(err))
			continue
		}

		if !finite(p.NetLiquidation) || (p.Cash != nil && !finite(*p.Cash)) {
			continue
		}

		// Later write at the same timestamp wins.
		byTS[p.TS] = p
	}

	err = scanner.Err()
	if err != nil {
		l.logger.Warn("equity-read-truncated", zap.Error(err))
	}

	l.points = make([]types.EquityPoint, 0, len(byTS))
	for _, p := range byTS {
		l.points = append(l.points, p)
	}
	sort.Slice(l.points, func(i, j int) bool { return l.points[i].TS < l.points[j].TS })

	if len(l.points) > l.maxPoints {
		l.points = l.points[len(l.points)-l.maxPoints:]
	}

	return nil
}

// Record appends a sample unless throttled. Non-finite input is silently
// dropped. A new sample is skipped when less than the minimum interval has
// elapsed AND the net-liquidation value has not moved by more than
// max(minMove, minMovePct * last value). When fewer than two samples exist,
// a synthetic point one minute in the past is persisted first so charts
// always have two distinct timestamps to interpolate between. Returns
// whether a sample was recorded.
func (l *EquityLog) Record(netLiquidation float64, cash *float64) bool {
	if !finite(netLiquidation) || (cash != nil && !finite(*cash)) {
		return false
	}

	now := l.now()
	ts := now.UnixMilli()

	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.points); n > 0 {
		last := l.points[n-1]
		elapsed := ts - last.TS
		move := math.Abs(netLiquidation - last.NetLiquidation)
		threshold := math.Max(l.minMove, l.minMovePct*math.Abs(last.NetLiquidation))

		if elapsed < l.minInterval.Milliseconds() && move <= threshold {
			EquityPointsThrottledTotal.Inc()
			return false
		}
	}

	if len(l.points) < 2 {
		synthTS := now.Add(-time.Minute).UnixMilli()
		noLast := len(l.points) == 0
		if noLast || synthTS > l.points[len(l.points)-1].TS {
			l.append(types.EquityPoint{TS: synthTS, NetLiquidation: netLiquidation, Cash: cash})
		}
	}

	l.append(types.EquityPoint{TS: ts, NetLiquidation: netLiquidation, Cash: cash})
	EquityPointsRecordedTotal.Inc()

	return true
}

// append inserts one point keeping non-decreasing TS order; a later write
// at an existing timestamp replaces the earlier one. Caller holds l.mu.
func (l *EquityLog) append(p types.EquityPoint) {
	n := len(l.points)
	switch {
	case n == 0 || p.TS > l.points[n-1].TS:
		l.points = append(l.points, p)
	case p.TS == l.points[n-1].TS:
		l.points[n-1] = p
	default:
		i := sort.Search(n, func(k int) bool { return l.points[k].TS >= p.TS })
		if i < n && l.points[i].TS == p.TS {
			l.points[i] = p
		} else {
			l.points = append(l.points, types.EquityPoint{})
			copy(l.points[i+1:], l.points[i:])
			l.points[i] = p
		}
	}

	if len(l.points) > l.maxPoints {
		l.points = l.points[len(l.points)-l.maxPoints:]
	}

	line, err := json.Marshal(p)
	if err != nil {
		l.logger.Warn("equity-marshal-failed", zap.Error(err))
		return
	}

	l.app.enqueue(line)
}

// Points returns the in-memory samples in timestamp order.
func (l *EquityLog) Points() []types.EquityPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.EquityPoint, len(l.points))
	copy(out, l.points)
	return out
}

// Close drains pending writes.
func (l *EquityLog) Close() error {
	l.app.close()
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
