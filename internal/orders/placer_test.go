package orders

import (
	"context"
	"testing"
	"time"

	"github.com/msandoval/tradeterm/internal/broker"
	"github.com/msandoval/tradeterm/internal/testutil"
	"github.com/msandoval/tradeterm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPlacer(conn *testutil.FakeConn, resolveTimeout time.Duration) *Placer {
	return NewPlacer(&PlacerConfig{
		Conn:           conn,
		Logger:         zap.NewNop(),
		IDTimeout:      time.Second,
		ResolveTimeout: resolveTimeout,
	})
}

func TestSubmit_ResolvesOnAccepted(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.OnPlace = func(o types.Order) {
		conn.EmitAfter(20*time.Millisecond, broker.OrderStatus{
			OrderID:   o.ID,
			Status:    types.StatusSubmitted,
			Filled:    0,
			Remaining: float64(o.Quantity),
		})
	}

	placer := newTestPlacer(conn, 5*time.Second)

	start := time.Now()
	outcome, err := placer.Submit(context.Background(), Request{
		Symbol:   "AAPL",
		Action:   types.Buy,
		Quantity: 10,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, types.StatusSubmitted, outcome.Status)
	assert.Equal(t, 0.0, outcome.Filled)
	assert.Nil(t, outcome.Warning)
	assert.Empty(t, outcome.RejectionReason)
	assert.Less(t, elapsed, time.Second, "must resolve on the status event, not the timeout")

	placed := conn.PlacedOrders()
	require.Len(t, placed, 1)
	assert.Equal(t, "AAPL", placed[0].Symbol)
	assert.Equal(t, "MKT", placed[0].OrderType)
}

func TestSubmit_ResolvesOnTerminalStatus(t *testing.T) {
	tests := []struct {
		name   string
		status types.OrderStatus
	}{
		{name: "filled", status: types.StatusFilled},
		{name: "cancelled", status: types.StatusCancelled},
		{name: "inactive", status: types.StatusInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := testutil.NewFakeConn()
			conn.OnPlace = func(o types.Order) {
				conn.EmitAfter(10*time.Millisecond, broker.OrderStatus{
					OrderID:      o.ID,
					Status:       tt.status,
					Filled:       10,
					AvgFillPrice: 187.5,
				})
			}

			placer := newTestPlacer(conn, 5*time.Second)

			outcome, err := placer.Submit(context.Background(), Request{
				Symbol:   "AAPL",
				Action:   types.Buy,
				Quantity: 10,
			})

			require.NoError(t, err)
			assert.Equal(t, tt.status, outcome.Status)
			assert.Equal(t, 10.0, outcome.Filled)
			assert.Equal(t, 187.5, outcome.AvgFillPrice)
		})
	}
}

func TestSubmit_LaterEventsDoNotDisturbOutcome(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.OnPlace = func(o types.Order) {
		conn.EmitAfter(10*time.Millisecond, broker.OrderStatus{
			OrderID: o.ID, Status: types.StatusFilled, Filled: 10,
		})
		// Stale events arriving after resolution.
		conn.EmitAfter(30*time.Millisecond, broker.OrderStatus{
			OrderID: o.ID, Status: types.StatusCancelled,
		})
		conn.EmitAfter(40*time.Millisecond, broker.Error{
			OrderID: o.ID, Code: 201, Message: "Order rejected - reason: too late",
		})
	}

	placer := newTestPlacer(conn, 5*time.Second)

	outcome, err := placer.Submit(context.Background(), Request{
		Symbol:   "MSFT",
		Action:   types.Sell,
		Quantity: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, types.StatusFilled, outcome.Status)

	// The subscription is detached on resolution; late events go nowhere.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, types.StatusFilled, outcome.Status)
}

func TestSubmit_RejectionThenTimeoutResolvesInactive(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.OnPlace = func(o types.Order) {
		conn.EmitAfter(10*time.Millisecond, broker.Error{
			OrderID: o.ID,
			Code:    201,
			Message: "Insufficient funds",
		})
		// No status event ever arrives.
	}

	placer := newTestPlacer(conn, 150*time.Millisecond)

	outcome, err := placer.Submit(context.Background(), Request{
		Symbol:   "TSLA",
		Action:   types.Sell,
		Quantity: 5,
	})

	require.NoError(t, err)
	assert.Equal(t, types.StatusInactive, outcome.Status)
	assert.Equal(t, "Insufficient funds", outcome.RejectionReason)
}

func TestSubmit_RejectionThenInactiveStatusResolvesImmediately(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.OnPlace = func(o types.Order) {
		conn.EmitAfter(10*time.Millisecond, broker.Error{
			OrderID: o.ID,
			Code:    201,
			Message: "Order rejected - reason: Margin requirement not met",
		})
		conn.EmitAfter(30*time.Millisecond, broker.OrderStatus{
			OrderID: o.ID,
			Status:  types.StatusInactive,
		})
	}

	placer := newTestPlacer(conn, 5*time.Second)

	start := time.Now()
	outcome, err := placer.Submit(context.Background(), Request{
		Symbol:   "NVDA",
		Action:   types.Buy,
		Quantity: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, types.StatusInactive, outcome.Status)
	assert.Equal(t, "Margin requirement not met", outcome.RejectionReason)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSubmit_WarningThenTimeoutResolvesSubmitted(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.OnPlace = func(o types.Order) {
		conn.EmitAfter(10*time.Millisecond, broker.Error{
			OrderID: o.ID,
			Code:    399,
			Message: "Your order will not be placed at the exchange until 2026-09-01 09:30:00 US/Eastern",
		})
	}

	placer := newTestPlacer(conn, 150*time.Millisecond)

	outcome, err := placer.Submit(context.Background(), Request{
		Symbol:   "AAPL",
		Action:   types.Buy,
		Quantity: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, types.StatusSubmitted, outcome.Status, "optimistic: accepted for later routing")
	require.NotNil(t, outcome.Warning)
	assert.Equal(t, types.WarningMarketClosed, outcome.Warning.Kind)
	assert.Equal(t, "2026-09-01 09:30:00", outcome.Warning.Until)
}

func TestSubmit_BareTimeoutKeepsLastStatus(t *testing.T) {
	conn := testutil.NewFakeConn()

	placer := newTestPlacer(conn, 100*time.Millisecond)

	outcome, err := placer.Submit(context.Background(), Request{
		Symbol:   "AAPL",
		Action:   types.Buy,
		Quantity: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, types.StatusSubmitting, outcome.Status)
}

func TestSubmit_UnclassifiedErrorFails(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.OnPlace = func(o types.Order) {
		conn.EmitAfter(10*time.Millisecond, broker.Error{
			OrderID: o.ID,
			Code:    200,
			Message: "No security definition has been found for the request",
		})
	}

	placer := newTestPlacer(conn, 5*time.Second)

	outcome, err := placer.Submit(context.Background(), Request{
		Symbol:   "ZZZZ",
		Action:   types.Buy,
		Quantity: 1,
	})

	require.Error(t, err)
	assert.Nil(t, outcome)

	var orderErr *types.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Contains(t, orderErr.Message, "No security definition")
}

func TestSubmit_GeneralUnscopedErrorFails(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.OnPlace = func(o types.Order) {
		conn.EmitAfter(10*time.Millisecond, broker.Error{
			OrderID: 0, // general error, not scoped to any order
			Code:    1300,
			Message: "Socket port has been reset",
		})
	}

	placer := newTestPlacer(conn, 5*time.Second)

	_, err := placer.Submit(context.Background(), Request{
		Symbol:   "AAPL",
		Action:   types.Buy,
		Quantity: 1,
	})

	require.Error(t, err)
}

func TestSubmit_InformationalCodesIgnored(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.OnPlace = func(o types.Order) {
		conn.EmitAfter(10*time.Millisecond, broker.Error{
			OrderID: 0,
			Code:    2104,
			Message: "Market data farm connection is OK",
		})
		conn.EmitAfter(30*time.Millisecond, broker.OrderStatus{
			OrderID: o.ID,
			Status:  types.StatusSubmitted,
		})
	}

	placer := newTestPlacer(conn, 5*time.Second)

	outcome, err := placer.Submit(context.Background(), Request{
		Symbol:   "AAPL",
		Action:   types.Buy,
		Quantity: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, types.StatusSubmitted, outcome.Status)
}

func TestSubmit_PreflightNotConnected(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.SetConnected(false)

	placer := newTestPlacer(conn, time.Second)

	_, err := placer.Submit(context.Background(), Request{
		Symbol:   "AAPL",
		Action:   types.Buy,
		Quantity: 10,
	})

	require.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, conn.PlacedOrders(), "no partial state before a pre-flight failure")
}

func TestSubmit_IDAllocationTimeout(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.IDDelay = time.Second

	placer := NewPlacer(&PlacerConfig{
		Conn:           conn,
		Logger:         zap.NewNop(),
		IDTimeout:      50 * time.Millisecond,
		ResolveTimeout: time.Second,
	})

	_, err := placer.Submit(context.Background(), Request{
		Symbol:   "AAPL",
		Action:   types.Buy,
		Quantity: 10,
	})

	require.ErrorIs(t, err, ErrIDTimeout)
	assert.Empty(t, conn.PlacedOrders())
}

func TestSubmit_InvalidRequest(t *testing.T) {
	conn := testutil.NewFakeConn()
	placer := newTestPlacer(conn, time.Second)

	tests := []struct {
		name string
		req  Request
	}{
		{name: "empty_symbol", req: Request{Action: types.Buy, Quantity: 1}},
		{name: "zero_quantity", req: Request{Symbol: "AAPL", Action: types.Buy}},
		{name: "negative_quantity", req: Request{Symbol: "AAPL", Action: types.Buy, Quantity: -5}},
		{name: "bad_action", req: Request{Symbol: "AAPL", Action: "HOLD", Quantity: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := placer.Submit(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}
}

func TestSubmit_PerIDGuard(t *testing.T) {
	placer := newTestPlacer(testutil.NewFakeConn(), time.Second)

	require.NoError(t, placer.acquire(7))
	assert.ErrorIs(t, placer.acquire(7), ErrOrderBusy)

	placer.release(7)
	assert.NoError(t, placer.acquire(7))
}

func TestSubmitAndWait_WaitsPastAcceptance(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.OnPlace = func(o types.Order) {
		conn.EmitAfter(10*time.Millisecond, broker.OrderStatus{
			OrderID: o.ID, Status: types.StatusSubmitted, Remaining: float64(o.Quantity),
		})
		conn.EmitAfter(60*time.Millisecond, broker.OrderStatus{
			OrderID: o.ID, Status: types.StatusFilled, Filled: float64(o.Quantity), AvgFillPrice: 42.0,
		})
	}

	placer := newTestPlacer(conn, 20*time.Millisecond)

	outcome, err := placer.SubmitAndWait(context.Background(), Request{
		Symbol:   "AAPL",
		Action:   types.Buy,
		Quantity: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, types.StatusFilled, outcome.Status)
	assert.Equal(t, 10.0, outcome.Filled)
	assert.Equal(t, 42.0, outcome.AvgFillPrice)
}

func TestSubmitAndWait_DeadlineResolvesWithLastStatus(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.OnPlace = func(o types.Order) {
		conn.EmitAfter(10*time.Millisecond, broker.OrderStatus{
			OrderID: o.ID, Status: types.StatusSubmitted,
		})
	}

	placer := newTestPlacer(conn, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	outcome, err := placer.SubmitAndWait(ctx, Request{
		Symbol:   "AAPL",
		Action:   types.Buy,
		Quantity: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, types.StatusSubmitted, outcome.Status)
}
