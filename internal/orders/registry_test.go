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

func newTestRegistry(conn *testutil.FakeConn, cancelTimeout time.Duration) *Registry {
	return NewRegistry(&RegistryConfig{
		Conn:            conn,
		Logger:          zap.NewNop(),
		CancelTimeout:   cancelTimeout,
		SnapshotTimeout: time.Second,
	})
}

func openOrder(id int64, symbol string, status types.OrderStatus, qty int64) broker.OpenOrder {
	return broker.OpenOrder{Order: types.Order{
		ID:        id,
		Symbol:    symbol,
		Action:    types.Buy,
		Quantity:  qty,
		OrderType: "MKT",
		Status:    status,
		Remaining: float64(qty),
	}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestRegistry_SnapshotLoad(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := newTestRegistry(conn, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, reg.Start(ctx))
	defer reg.Stop()

	assert.True(t, reg.Loading())
	assert.Equal(t, 1, conn.OpenOrderReqs)

	conn.Emit(openOrder(101, "AAPL", types.StatusSubmitted, 10))
	conn.Emit(openOrder(102, "MSFT", types.StatusPreSubmitted, 5))
	conn.Emit(openOrder(103, "TSLA", types.StatusFilled, 3)) // terminal, excluded
	conn.Emit(broker.OpenOrdersEnd{})

	waitFor(t, func() bool { return !reg.Loading() })

	pending := reg.Pending()
	require.Len(t, pending, 2)

	ids := []int64{pending[0].ID, pending[1].ID}
	assert.ElementsMatch(t, []int64{101, 102}, ids)
}

func TestRegistry_PendingSortedMostRecentFirst(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := newTestRegistry(conn, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, reg.Start(ctx))
	defer reg.Stop()

	conn.Emit(openOrder(201, "AAPL", types.StatusSubmitted, 10))
	waitFor(t, func() bool { return len(reg.Pending()) == 1 })

	time.Sleep(10 * time.Millisecond)
	conn.Emit(openOrder(202, "MSFT", types.StatusSubmitted, 5))
	waitFor(t, func() bool { return len(reg.Pending()) == 2 })

	pending := reg.Pending()
	assert.Equal(t, int64(202), pending[0].ID)
	assert.Equal(t, int64(201), pending[1].ID)
}

func TestRegistry_StatusDeltaUpdatesKnownOrder(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := newTestRegistry(conn, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, reg.Start(ctx))
	defer reg.Stop()

	conn.Emit(openOrder(301, "AAPL", types.StatusPreSubmitted, 10))
	waitFor(t, func() bool { return len(reg.Pending()) == 1 })

	conn.Emit(broker.OrderStatus{
		OrderID:   301,
		Status:    types.StatusSubmitted,
		Filled:    4,
		Remaining: 6,
	})
	waitFor(t, func() bool {
		p := reg.Pending()
		return len(p) == 1 && p[0].Status == types.StatusSubmitted
	})

	p := reg.Pending()
	assert.Equal(t, 4.0, p[0].Filled)
	assert.Equal(t, 6.0, p[0].Remaining)
	assert.Equal(t, "AAPL", p[0].Symbol, "snapshot fields survive the delta")
}

func TestRegistry_StatusDeltaForUnknownOrderIgnored(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := newTestRegistry(conn, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, reg.Start(ctx))
	defer reg.Stop()

	conn.Emit(broker.OrderStatus{OrderID: 999, Status: types.StatusSubmitted})
	conn.Emit(broker.OpenOrdersEnd{})

	waitFor(t, func() bool { return !reg.Loading() })
	assert.Empty(t, reg.Pending())
}

func TestRegistry_TerminalStatusRemovesOrder(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := newTestRegistry(conn, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, reg.Start(ctx))
	defer reg.Stop()

	conn.Emit(openOrder(401, "AAPL", types.StatusSubmitted, 10))
	waitFor(t, func() bool { return len(reg.Pending()) == 1 })

	conn.Emit(broker.OrderStatus{OrderID: 401, Status: types.StatusFilled, Filled: 10})
	waitFor(t, func() bool { return len(reg.Pending()) == 0 })
}

func TestRegistry_RefreshClearsView(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := newTestRegistry(conn, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, reg.Start(ctx))
	defer reg.Stop()

	conn.Emit(openOrder(501, "AAPL", types.StatusSubmitted, 10))
	conn.Emit(broker.OpenOrdersEnd{})
	waitFor(t, func() bool { return !reg.Loading() && len(reg.Pending()) == 1 })

	require.NoError(t, reg.Refresh(ctx))
	assert.True(t, reg.Loading())
	assert.Empty(t, reg.Pending())
	assert.Equal(t, 2, conn.OpenOrderReqs)

	conn.Emit(openOrder(502, "MSFT", types.StatusSubmitted, 5))
	conn.Emit(broker.OpenOrdersEnd{})
	waitFor(t, func() bool { return !reg.Loading() })

	pending := reg.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, int64(502), pending[0].ID)
}

func TestRegistry_SnapshotTimeoutClearsLoading(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := NewRegistry(&RegistryConfig{
		Conn:            conn,
		Logger:          zap.NewNop(),
		CancelTimeout:   time.Second,
		SnapshotTimeout: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, reg.Start(ctx))
	defer reg.Stop()

	conn.Emit(openOrder(601, "AAPL", types.StatusSubmitted, 10))
	// End-of-snapshot marker never arrives.

	waitFor(t, func() bool { return !reg.Loading() })
	assert.Len(t, reg.Pending(), 1, "partial snapshot stays usable")
}

func TestRegistry_CancelConfirmed(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := newTestRegistry(conn, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, reg.Start(ctx))
	defer reg.Stop()

	conn.Emit(openOrder(701, "AAPL", types.StatusSubmitted, 10))
	waitFor(t, func() bool { return len(reg.Pending()) == 1 })

	conn.OnCancel = func(id int64) {
		conn.EmitAfter(10*time.Millisecond, broker.OrderStatus{
			OrderID: id, Status: types.StatusCancelled,
		})
	}

	res, err := reg.Cancel(ctx, 701)
	require.NoError(t, err)
	assert.Equal(t, int64(701), res.OrderID)
	assert.Equal(t, types.StatusCancelled, res.Status)

	// Gone from the local view without waiting for a refresh.
	assert.Empty(t, reg.Pending())
	assert.Equal(t, []int64{701}, conn.CancelledIDs)
}

func TestRegistry_CancelBrokerError(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := newTestRegistry(conn, time.Second)

	conn.OnCancel = func(id int64) {
		conn.EmitAfter(10*time.Millisecond, broker.Error{
			OrderID: id,
			Code:    10147,
			Message: "OrderId 801 that needs to be cancelled is not found",
		})
	}

	_, err := reg.Cancel(context.Background(), 801)
	require.Error(t, err)

	var orderErr *types.OrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, 10147, orderErr.Code)
	assert.Equal(t, int64(801), orderErr.OrderID)
}

func TestRegistry_CancelTimeout(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := newTestRegistry(conn, 60*time.Millisecond)

	_, err := reg.Cancel(context.Background(), 901)
	require.ErrorIs(t, err, ErrCancelTimeout)
}

func TestRegistry_CancelIgnoresNonCancelledStatuses(t *testing.T) {
	conn := testutil.NewFakeConn()
	reg := newTestRegistry(conn, time.Second)

	conn.OnCancel = func(id int64) {
		conn.EmitAfter(10*time.Millisecond, broker.OrderStatus{
			OrderID: id, Status: types.StatusSubmitted,
		})
		conn.EmitAfter(40*time.Millisecond, broker.OrderStatus{
			OrderID: id, Status: types.StatusCancelled,
		})
	}

	res, err := reg.Cancel(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, res.Status)
}

func TestRegistry_CancelNotConnected(t *testing.T) {
	conn := testutil.NewFakeConn()
	conn.SetConnected(false)
	reg := newTestRegistry(conn, time.Second)

	_, err := reg.Cancel(context.Background(), 1101)
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, conn.CancelledIDs)
}
