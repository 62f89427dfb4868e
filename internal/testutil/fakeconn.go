// Package testutil provides fakes and fixtures shared across test suites.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/msandoval/tradeterm/internal/broker"
	"github.com/msandoval/tradeterm/pkg/types"
	"go.uber.org/zap"
)

// FakeConn is a scripted, in-memory broker connection. Tests drive it by
// emitting events; every command is recorded for assertions and may invoke
// an optional hook so a test can script the broker's reaction.
type FakeConn struct {
	hub *broker.Hub

	// IDDelay makes NextOrderID block, to exercise the allocation bound.
	IDDelay time.Duration

	mu        sync.Mutex
	connected bool
	nextID    int64

	Placed        []types.Order
	CancelledIDs  []int64
	OpenOrderReqs int
	ExecReqs      int

	OnPlace      func(types.Order)
	OnCancel     func(int64)
	OnOpenOrders func()
}

// NewFakeConn creates a connected fake with order ids starting at 1.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		hub:       broker.NewHub(64, zap.NewNop()),
		connected: true,
		nextID:    1,
	}
}

// SetConnected toggles the connection state.
func (c *FakeConn) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

// Emit publishes one event to every subscriber.
func (c *FakeConn) Emit(ev broker.Event) {
	c.hub.Publish(ev)
}

// EmitAfter publishes one event after a delay, from a timer goroutine.
func (c *FakeConn) EmitAfter(d time.Duration, ev broker.Event) {
	time.AfterFunc(d, func() { c.hub.Publish(ev) })
}

func (c *FakeConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *FakeConn) Events() *broker.Hub {
	return c.hub
}

func (c *FakeConn) NextOrderID(ctx context.Context) (int64, error) {
	if c.IDDelay > 0 {
		select {
		case <-time.After(c.IDDelay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return id, nil
}

func (c *FakeConn) PlaceOrder(ctx context.Context, order types.Order) error {
	c.mu.Lock()
	c.Placed = append(c.Placed, order)
	hook := c.OnPlace
	c.mu.Unlock()

	if hook != nil {
		hook(order)
	}
	return nil
}

func (c *FakeConn) CancelOrder(ctx context.Context, orderID int64) error {
	c.mu.Lock()
	c.CancelledIDs = append(c.CancelledIDs, orderID)
	hook := c.OnCancel
	c.mu.Unlock()

	if hook != nil {
		hook(orderID)
	}
	return nil
}

func (c *FakeConn) RequestOpenOrders(ctx context.Context) error {
	c.mu.Lock()
	c.OpenOrderReqs++
	hook := c.OnOpenOrders
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (c *FakeConn) RequestExecutions(ctx context.Context) error {
	c.mu.Lock()
	c.ExecReqs++
	c.mu.Unlock()
	return nil
}

// PlacedOrders returns a copy of the recorded placements.
func (c *FakeConn) PlacedOrders() []types.Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.Order, len(c.Placed))
	copy(out, c.Placed)
	return out
}
