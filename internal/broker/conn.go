// Package broker defines the connection collaborator that mediates all
// communication with the brokerage gateway, plus the event stream the rest
// of the program consumes. The wire protocol lives in the gateway client;
// everything else depends only on the Conn interface and the event types.
package broker

import (
	"context"

	"github.com/msandoval/tradeterm/pkg/types"
)

// Conn abstracts the brokerage gateway connection.
type Conn interface {
	// Connected reports whether the gateway session is established.
	Connected() bool

	// Events returns the hub carrying the gateway's event stream. Events
	// for a given order id arrive in emission order.
	Events() *Hub

	// NextOrderID allocates the next broker order id for this session.
	NextOrderID(ctx context.Context) (int64, error)

	// PlaceOrder submits an order under a previously allocated id. The
	// call is fire-and-forget: the result arrives as events.
	PlaceOrder(ctx context.Context, order types.Order) error

	// CancelOrder requests cancellation of an open order. Confirmation
	// arrives as an order-status event.
	CancelOrder(ctx context.Context, orderID int64) error

	// RequestOpenOrders asks the gateway for a snapshot of all open
	// orders, delivered as OpenOrder events closed by OpenOrdersEnd.
	RequestOpenOrders(ctx context.Context) error

	// RequestExecutions asks the gateway to replay execution details for
	// the current session, delivered as Execution events.
	RequestExecutions(ctx context.Context) error
}

// Event is one item of the gateway event stream.
type Event interface {
	event()
}

// OrderStatus is a status delta for one order.
type OrderStatus struct {
	OrderID      int64
	Status       types.OrderStatus
	Filled       float64
	Remaining    float64
	AvgFillPrice float64
}

// OpenOrder is one entry of an open-orders snapshot.
type OpenOrder struct {
	Order types.Order
}

// OpenOrdersEnd marks the end of an open-orders snapshot.
type OpenOrdersEnd struct{}

// Execution is one executed fill reported by the gateway.
type Execution struct {
	ExecID   string
	OrderID  int64
	Symbol   string
	Side     types.OrderAction
	Quantity float64
	Price    float64
	Time     string
}

// Error is a broker error or informational message. OrderID is 0 for
// general, unscoped errors.
type Error struct {
	OrderID int64
	Code    int
	Message string
}

// AccountSummary is a periodic account valuation report. Cash is nil when
// the gateway did not include it.
type AccountSummary struct {
	Account        string
	NetLiquidation float64
	Cash           *float64
}

// NextID carries a freshly allocated order id.
type NextID struct {
	OrderID int64
}

func (OrderStatus) event()    {}
func (OpenOrder) event()      {}
func (OpenOrdersEnd) event()  {}
func (Execution) event()      {}
func (Error) event()          {}
func (AccountSummary) event() {}
func (NextID) event()         {}
