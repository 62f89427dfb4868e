// Package orders drives the order lifecycle: one submission in, exactly one
// resolved outcome out, reconciling status events, classified broker
// messages and a hard resolution timeout.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/msandoval/tradeterm/internal/broker"
	"github.com/msandoval/tradeterm/internal/classify"
	"github.com/msandoval/tradeterm/pkg/types"
	"go.uber.org/zap"
)

var (
	// ErrNotConnected is returned before any order is attempted when the
	// broker session is down.
	ErrNotConnected = errors.New("not connected to broker")

	// ErrIDTimeout is returned when order id allocation does not complete
	// within its bound.
	ErrIDTimeout = errors.New("order id allocation timed out")

	// ErrOrderBusy is returned when another operation is already in
	// flight for the same order id.
	ErrOrderBusy = errors.New("operation already in flight for this order id")

	// ErrCancelTimeout is returned when no cancellation confirmation
	// arrives within the cancel bound.
	ErrCancelTimeout = errors.New("cancel confirmation timed out")
)

// Placer submits orders and tracks each one to a single terminal outcome.
type Placer struct {
	conn           broker.Conn
	logger         *zap.Logger
	idTimeout      time.Duration
	resolveTimeout time.Duration

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// PlacerConfig holds placer configuration.
type PlacerConfig struct {
	Conn           broker.Conn
	Logger         *zap.Logger
	IDTimeout      time.Duration // default 5s
	ResolveTimeout time.Duration // default 30s
}

// NewPlacer creates a new order placer.
func NewPlacer(cfg *PlacerConfig) *Placer {
	idTimeout := cfg.IDTimeout
	if idTimeout <= 0 {
		idTimeout = 5 * time.Second
	}

	resolveTimeout := cfg.ResolveTimeout
	if resolveTimeout <= 0 {
		resolveTimeout = 30 * time.Second
	}

	return &Placer{
		conn:           cfg.Conn,
		logger:         cfg.Logger,
		idTimeout:      idTimeout,
		resolveTimeout: resolveTimeout,
		inFlight:       make(map[int64]struct{}),
	}
}

// Request describes one market order to submit.
type Request struct {
	Symbol   string
	Action   types.OrderAction
	Quantity int64
}

func (r *Request) validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}

	if r.Action != types.Buy && r.Action != types.Sell {
		return fmt.Errorf("action must be BUY or SELL, got %q", r.Action)
	}

	if r.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", r.Quantity)
	}

	return nil
}

// Submit places a market order and resolves it to exactly one Outcome.
// Acceptance (Submitted, PreSubmitted, Filled) resolves immediately: a
// market-closed order the broker accepts for later routing must not block
// the caller for hours. Callers needing fill confirmation use
// SubmitAndWait.
func (p *Placer) Submit(ctx context.Context, req Request) (*types.Outcome, error) {
	return p.submit(ctx, req, false)
}

// SubmitAndWait places a market order and keeps listening past acceptance
// until a terminal status arrives or the caller's context expires. On
// context expiry the outcome resolves with the same precedence rules as the
// resolution timeout.
func (p *Placer) SubmitAndWait(ctx context.Context, req Request) (*types.Outcome, error) {
	return p.submit(ctx, req, true)
}

func (p *Placer) submit(ctx context.Context, req Request, waitForFill bool) (*types.Outcome, error) {
	err := req.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if !p.conn.Connected() {
		return nil, ErrNotConnected
	}

	idCtx, cancel := context.WithTimeout(ctx, p.idTimeout)
	defer cancel()

	orderID, err := p.conn.NextOrderID(idCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrIDTimeout
		}
		return nil, fmt.Errorf("allocate order id: %w", err)
	}

	err = p.acquire(orderID)
	if err != nil {
		return nil, err
	}
	defer p.release(orderID)

	// Attach before placing so no event can slip between the placement
	// call and the first select.
	sub := p.conn.Events().Subscribe(orderScoped(orderID))
	defer sub.Cancel()

	order := types.Order{
		ID:        orderID,
		Symbol:    req.Symbol,
		Action:    req.Action,
		Quantity:  req.Quantity,
		OrderType: "MKT",
		Status:    types.StatusSubmitting,
		Remaining: float64(req.Quantity),
	}

	err = p.conn.PlaceOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	OrdersSubmittedTotal.WithLabelValues(string(req.Action)).Inc()

	p.logger.Info("order-submitted",
		zap.Int64("order-id", orderID),
		zap.String("symbol", req.Symbol),
		zap.String("action", string(req.Action)),
		zap.Int64("quantity", req.Quantity))

	return p.track(ctx, sub, orderID, waitForFill)
}

// orderScoped matches status events for one order id, plus error events for
// that id or general unscoped errors.
func orderScoped(orderID int64) func(broker.Event) bool {
	return func(ev broker.Event) bool {
		switch e := ev.(type) {
		case broker.OrderStatus:
			return e.OrderID == orderID
		case broker.Error:
			return e.OrderID == orderID || e.OrderID == 0
		default:
			return false
		}
	}
}

// track runs the per-order state machine until resolution. Exactly one
// outcome is produced; the subscription is cancelled by the caller's defer
// on every exit path.
func (p *Placer) track(ctx context.Context, sub *broker.Subscription, orderID int64, waitForFill bool) (*types.Outcome, error) {
	start := time.Now()

	lastStatus := types.StatusSubmitting
	var lastFilled, lastAvgPrice float64
	var warning *types.Warning
	var rejection *types.Rejection

	var timerC <-chan time.Time
	if !waitForFill {
		timer := time.NewTimer(p.resolveTimeout)
		defer timer.Stop()
		timerC = timer.C
	}

	resolve := func(status types.OrderStatus) *types.Outcome {
		out := &types.Outcome{
			OrderID:      orderID,
			Status:       status,
			Filled:       lastFilled,
			AvgFillPrice: lastAvgPrice,
			Warning:      warning,
		}
		if status == types.StatusInactive && rejection != nil {
			out.RejectionReason = rejection.Reason
		}

		OrdersResolvedTotal.WithLabelValues(string(status)).Inc()
		ResolveDurationSeconds.Observe(time.Since(start).Seconds())

		p.logger.Info("order-resolved",
			zap.Int64("order-id", orderID),
			zap.String("status", string(status)),
			zap.Float64("filled", out.Filled),
			zap.String("rejection-reason", out.RejectionReason),
			zap.Duration("elapsed", time.Since(start)))

		return out
	}

	for {
		select {
		case ev := <-sub.C:
			switch e := ev.(type) {
			case broker.OrderStatus:
				lastStatus = e.Status
				lastFilled = e.Filled
				lastAvgPrice = e.AvgFillPrice

				if e.Status.Terminal() {
					return resolve(e.Status), nil
				}

				if !waitForFill && e.Status.Accepted() {
					return resolve(e.Status), nil
				}

			case broker.Error:
				if classify.InformationalCode(e.Code) {
					continue
				}

				res := classify.Message(e.Message, e.Code)
				switch res.Kind {
				case classify.Rejection:
					// A status event confirming Inactive may
					// still be pending; hold the reason and
					// keep listening.
					rejection = res.Rejection
					p.logger.Warn("order-rejection-message",
						zap.Int64("order-id", orderID),
						zap.String("kind", string(res.Rejection.Kind)),
						zap.String("reason", res.Rejection.Reason))

				case classify.Warning:
					warning = res.Warning
					p.logger.Info("order-warning",
						zap.Int64("order-id", orderID),
						zap.String("kind", string(res.Warning.Kind)),
						zap.String("until", res.Warning.Until))

				case classify.Ignorable:

				case classify.Unclassified:
					UnclassifiedErrorsTotal.Inc()
					p.logger.Error("unclassified-broker-error",
						zap.Int64("order-id", orderID),
						zap.Int("code", e.Code),
						zap.String("message", e.Message))
					return nil, &types.OrderError{
						Code:    e.Code,
						Message: e.Message,
						OrderID: e.OrderID,
					}
				}
			}

		case <-timerC:
			OrderTimeoutsTotal.Inc()
			return resolve(p.timeoutStatus(lastStatus, warning, rejection)), nil

		case <-ctx.Done():
			if waitForFill {
				// The caller's deadline bounds the fill wait;
				// resolve with the same precedence as a timeout.
				return resolve(p.timeoutStatus(lastStatus, warning, rejection)), nil
			}
			return nil, ctx.Err()
		}
	}
}

// timeoutStatus applies the resolution precedence when no terminal event
// arrived in time: stored rejection wins, then stored warning (optimistic:
// accepted for later routing), then whatever was last observed.
func (p *Placer) timeoutStatus(last types.OrderStatus, warning *types.Warning, rejection *types.Rejection) types.OrderStatus {
	if rejection != nil {
		return types.StatusInactive
	}

	if warning != nil {
		return types.StatusSubmitted
	}

	return last
}

func (p *Placer) acquire(orderID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, busy := p.inFlight[orderID]; busy {
		return ErrOrderBusy
	}

	p.inFlight[orderID] = struct{}{}
	return nil
}

func (p *Placer) release(orderID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, orderID)
}
