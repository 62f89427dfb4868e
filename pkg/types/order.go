// Package types contains the shared domain types: orders and their status
// vocabulary, submission outcomes, trade records and equity samples.
package types

import "time"

// OrderAction is the order side.
type OrderAction string

const (
	Buy  OrderAction = "BUY"
	Sell OrderAction = "SELL"
)

// OrderStatus is the broker's order status vocabulary, plus the local
// Submitting state an order carries before the broker acknowledges it.
type OrderStatus string

const (
	StatusSubmitting    OrderStatus = "Submitting" // local, pre-acknowledgement
	StatusPendingSubmit OrderStatus = "PendingSubmit"
	StatusPreSubmitted  OrderStatus = "PreSubmitted"
	StatusSubmitted     OrderStatus = "Submitted"
	StatusFilled        OrderStatus = "Filled"
	StatusCancelled     OrderStatus = "Cancelled"
	StatusInactive      OrderStatus = "Inactive"
)

// Terminal reports whether the status ends the order's lifecycle.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusInactive:
		return true
	default:
		return false
	}
}

// Accepted reports whether the broker has taken responsibility for the
// order.
func (s OrderStatus) Accepted() bool {
	switch s {
	case StatusSubmitted, StatusPreSubmitted, StatusFilled:
		return true
	default:
		return false
	}
}

// Pending reports whether the order is still working at the broker.
func (s OrderStatus) Pending() bool {
	switch s {
	case StatusPendingSubmit, StatusPreSubmitted, StatusSubmitted:
		return true
	default:
		return false
	}
}

// Order is one brokerage order as seen locally.
type Order struct {
	ID           int64
	Symbol       string
	Action       OrderAction
	Quantity     int64
	OrderType    string
	Status       OrderStatus
	Filled       float64
	Remaining    float64
	AvgFillPrice float64
	UpdatedAt    time.Time
}

// WarningKind identifies a known delay condition on an accepted order.
type WarningKind string

const (
	WarningMarketClosed WarningKind = "market_closed"
	WarningOrderHeld    WarningKind = "order_held"
)

// warningTimeLayout matches the broker's routing timestamp format.
const warningTimeLayout = "2006-01-02 15:04:05"

// Warning is metadata attached to an accepted order that will not route
// immediately. Until carries the broker's routing timestamp verbatim when
// the message included one.
type Warning struct {
	Kind  WarningKind
	Until string
}

// UntilTime parses the routing timestamp. ok is false when the warning
// carried none, or it was unparseable.
func (w *Warning) UntilTime() (time.Time, bool) {
	if w == nil || w.Until == "" {
		return time.Time{}, false
	}

	t, err := time.Parse(warningTimeLayout, w.Until)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// RejectionKind identifies why the broker refused an order.
type RejectionKind string

const (
	RejectionRejected          RejectionKind = "rejected"
	RejectionInsufficientFunds RejectionKind = "insufficient_funds"
)

// Rejection is the classified explanation of a refused order. Reason is
// human-readable, with markup stripped.
type Rejection struct {
	Kind   RejectionKind
	Reason string
}

// Outcome is the single resolved result of one order submission.
type Outcome struct {
	OrderID      int64
	Status       OrderStatus
	Filled       float64
	AvgFillPrice float64

	// Warning is non-nil when the order was accepted with a known delay
	// condition.
	Warning *Warning

	// RejectionReason is set when the order resolved Inactive with a
	// classified rejection.
	RejectionReason string
}
