package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/msandoval/tradeterm/internal/broker"
	"github.com/msandoval/tradeterm/internal/classify"
	"github.com/msandoval/tradeterm/pkg/types"
	"go.uber.org/zap"
)

// Registry maintains the live set of all pending orders, independent of who
// submitted them: orders already open when the session starts are picked up
// from the open-orders snapshot, later ones from status deltas.
type Registry struct {
	conn            broker.Conn
	logger          *zap.Logger
	cancelTimeout   time.Duration
	snapshotTimeout time.Duration

	mu      sync.RWMutex
	orders  map[int64]*types.Order
	loading bool
	snap    *time.Timer

	sub  *broker.Subscription
	done chan struct{}
}

// RegistryConfig holds registry configuration.
type RegistryConfig struct {
	Conn            broker.Conn
	Logger          *zap.Logger
	CancelTimeout   time.Duration // default 10s
	SnapshotTimeout time.Duration // default 15s
}

// NewRegistry creates a new open-orders registry.
func NewRegistry(cfg *RegistryConfig) *Registry {
	cancelTimeout := cfg.CancelTimeout
	if cancelTimeout <= 0 {
		cancelTimeout = 10 * time.Second
	}

	snapshotTimeout := cfg.SnapshotTimeout
	if snapshotTimeout <= 0 {
		snapshotTimeout = 15 * time.Second
	}

	return &Registry{
		conn:            cfg.Conn,
		logger:          cfg.Logger,
		cancelTimeout:   cancelTimeout,
		snapshotTimeout: snapshotTimeout,
		orders:          make(map[int64]*types.Order),
	}
}

// Start subscribes to the event stream and issues the initial open-orders
// request.
func (r *Registry) Start(ctx context.Context) error {
	r.sub = r.conn.Events().Subscribe(func(ev broker.Event) bool {
		switch ev.(type) {
		case broker.OrderStatus, broker.OpenOrder, broker.OpenOrdersEnd:
			return true
		default:
			return false
		}
	})
	r.done = make(chan struct{})

	go r.run(ctx)

	return r.Refresh(ctx)
}

// Stop detaches the registry from the event stream.
func (r *Registry) Stop() {
	if r.sub != nil {
		r.sub.Cancel()
	}
	if r.done != nil {
		<-r.done
	}
}

func (r *Registry) run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.sub.C:
			if !ok {
				return
			}
			r.apply(ev)
		}
	}
}

func (r *Registry) apply(ev broker.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case broker.OpenOrder:
		if e.Order.Status.Terminal() {
			delete(r.orders, e.Order.ID)
			break
		}

		o := e.Order
		o.UpdatedAt = time.Now()
		r.orders[o.ID] = &o

	case broker.OpenOrdersEnd:
		r.loading = false
		if r.snap != nil {
			r.snap.Stop()
			r.snap = nil
		}
		r.logger.Debug("open-orders-snapshot-complete",
			zap.Int("count", len(r.orders)))

	case broker.OrderStatus:
		o, known := r.orders[e.OrderID]
		if !known {
			// Deltas for ids we never saw an open-order event for
			// belong to somebody else's view.
			break
		}

		if e.Status.Terminal() {
			delete(r.orders, e.OrderID)
			break
		}

		// Update only the fields the delta carries.
		o.Status = e.Status
		o.Filled = e.Filled
		o.Remaining = e.Remaining
		o.AvgFillPrice = e.AvgFillPrice
		o.UpdatedAt = time.Now()
	}

	OpenOrdersGauge.Set(float64(len(r.orders)))
}

// Refresh clears the local view and re-requests the open-orders snapshot.
// Safe to call at any time. The loading flag clears on the end-of-snapshot
// marker, or after the snapshot timeout if the marker never arrives.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.orders = make(map[int64]*types.Order)
	r.loading = true
	if r.snap != nil {
		r.snap.Stop()
	}
	r.snap = time.AfterFunc(r.snapshotTimeout, r.snapshotTimedOut)
	r.mu.Unlock()

	OpenOrdersGauge.Set(0)

	err := r.conn.RequestOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("request open orders: %w", err)
	}

	return nil
}

func (r *Registry) snapshotTimedOut() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loading {
		return
	}

	r.loading = false
	r.snap = nil
	r.logger.Warn("open-orders-snapshot-timeout",
		zap.Duration("timeout", r.snapshotTimeout),
		zap.Int("partial-count", len(r.orders)))
}

// Loading reports whether an open-orders snapshot is still in flight.
func (r *Registry) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// Pending returns the orders in {PendingSubmit, PreSubmitted, Submitted},
// most recently updated first.
func (r *Registry) Pending() []types.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := make([]types.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if o.Status.Pending() {
			pending = append(pending, *o)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].UpdatedAt.After(pending[j].UpdatedAt)
	})

	return pending
}

// CancelResult is the confirmation of one cancel operation.
type CancelResult struct {
	OrderID int64
	Status  types.OrderStatus
}

// Cancel sends a cancel instruction and waits, bounded, for a status event
// confirming Cancelled. On confirmation the order leaves the local view
// immediately.
func (r *Registry) Cancel(ctx context.Context, orderID int64) (*CancelResult, error) {
	if !r.conn.Connected() {
		return nil, ErrNotConnected
	}

	sub := r.conn.Events().Subscribe(func(ev broker.Event) bool {
		switch e := ev.(type) {
		case broker.OrderStatus:
			return e.OrderID == orderID
		case broker.Error:
			return e.OrderID == orderID
		default:
			return false
		}
	})
	defer sub.Cancel()

	err := r.conn.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("cancel order %d: %w", orderID, err)
	}

	CancelsTotal.Inc()

	timer := time.NewTimer(r.cancelTimeout)
	defer timer.Stop()

	for {
		select {
		case ev := <-sub.C:
			switch e := ev.(type) {
			case broker.OrderStatus:
				if e.Status != types.StatusCancelled {
					continue
				}

				r.mu.Lock()
				delete(r.orders, orderID)
				r.mu.Unlock()
				OpenOrdersGauge.Set(float64(r.size()))

				r.logger.Info("order-cancelled", zap.Int64("order-id", orderID))
				return &CancelResult{OrderID: orderID, Status: types.StatusCancelled}, nil

			case broker.Error:
				if classify.InformationalCode(e.Code) {
					continue
				}
				if classify.Message(e.Message, e.Code).Kind == classify.Ignorable {
					continue
				}

				return nil, &types.OrderError{
					Code:    e.Code,
					Message: e.Message,
					OrderID: orderID,
				}
			}

		case <-timer.C:
			CancelTimeoutsTotal.Inc()
			return nil, ErrCancelTimeout

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *Registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}
