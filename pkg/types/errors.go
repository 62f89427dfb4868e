package types

import "fmt"

// OrderError represents a broker error propagated to the caller because it
// could not be classified as ignorable, a warning or a rejection.
type OrderError struct {
	Code    int    // Broker numeric code, 0 when absent
	Message string // Raw broker message
	OrderID int64  // Scoping order id, 0 for general errors
}

func (e *OrderError) Error() string {
	if e.OrderID > 0 {
		return fmt.Sprintf("broker error for order %d: %s (code %d)", e.OrderID, e.Message, e.Code)
	}

	return fmt.Sprintf("broker error: %s (code %d)", e.Message, e.Code)
}
