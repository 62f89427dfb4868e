package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/msandoval/tradeterm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedGateway struct {
	upgrader websocket.Upgrader

	// received collects every frame the client writes after the auth frame.
	received chan map[string]interface{}

	// send delivers frames for the server to push to the client.
	send chan map[string]interface{}
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{
		received: make(chan map[string]interface{}, 16),
		send:     make(chan map[string]interface{}, 16),
	}
}

func (s *scriptedGateway) handler(nextOrderID int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var auth map[string]interface{}
		if conn.ReadJSON(&auth) != nil {
			return
		}

		err = conn.WriteJSON(map[string]interface{}{
			"type":        "hello",
			"nextOrderId": nextOrderID,
		})
		if err != nil {
			return
		}

		go func() {
			for frame := range s.send {
				if conn.WriteJSON(frame) != nil {
					return
				}
			}
		}()

		for {
			var frame map[string]interface{}
			if conn.ReadJSON(&frame) != nil {
				return
			}
			s.received <- frame
		}
	}
}

func dialTestGateway(t *testing.T, script *scriptedGateway, nextOrderID int64) *Gateway {
	t.Helper()

	srv := httptest.NewServer(script.handler(nextOrderID))
	t.Cleanup(srv.Close)

	gw := NewGateway(GatewayConfig{
		URL:                  "ws" + strings.TrimPrefix(srv.URL, "http"),
		Account:              "DU1",
		DialTimeout:          2 * time.Second,
		ReconnectInitialWait: 10 * time.Millisecond,
		ReconnectMaxWait:     50 * time.Millisecond,
		EventBufferSize:      64,
		Logger:               zap.NewNop(),
	})

	require.NoError(t, gw.Connect(context.Background()))
	t.Cleanup(func() { gw.Close() })

	return gw
}

func recvFrame(t *testing.T, script *scriptedGateway) map[string]interface{} {
	t.Helper()
	select {
	case frame := <-script.received:
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame reached the server")
		return nil
	}
}

func TestGateway_HandshakeSeedsOrderIDPool(t *testing.T) {
	gw := dialTestGateway(t, newScriptedGateway(), 500)

	assert.True(t, gw.Connected())

	id1, err := gw.NextOrderID(context.Background())
	require.NoError(t, err)
	id2, err := gw.NextOrderID(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(500), id1)
	assert.Equal(t, int64(501), id2)
}

func TestGateway_InboundFramesReachSubscribers(t *testing.T) {
	script := newScriptedGateway()
	gw := dialTestGateway(t, script, 1)

	sub := gw.Events().Subscribe(nil)
	defer sub.Cancel()

	script.send <- map[string]interface{}{
		"type":         "orderStatus",
		"orderId":      7,
		"status":       "Submitted",
		"filled":       4.0,
		"remaining":    6.0,
		"avgFillPrice": 187.5,
	}

	select {
	case ev := <-sub.C:
		status, ok := ev.(OrderStatus)
		require.True(t, ok)
		assert.Equal(t, int64(7), status.OrderID)
		assert.Equal(t, types.StatusSubmitted, status.Status)
		assert.Equal(t, 4.0, status.Filled)
	case <-time.After(time.Second):
		t.Fatal("event never published")
	}
}

func TestGateway_NegativeErrorOrderIDNormalized(t *testing.T) {
	script := newScriptedGateway()
	gw := dialTestGateway(t, script, 1)

	sub := gw.Events().Subscribe(func(ev Event) bool {
		_, ok := ev.(Error)
		return ok
	})
	defer sub.Cancel()

	script.send <- map[string]interface{}{
		"type":    "error",
		"orderId": -1,
		"code":    2104,
		"message": "Market data farm connection is OK",
	}

	select {
	case ev := <-sub.C:
		errEv := ev.(Error)
		assert.Equal(t, int64(0), errEv.OrderID, "unscoped errors carry order id 0")
		assert.Equal(t, 2104, errEv.Code)
	case <-time.After(time.Second):
		t.Fatal("event never published")
	}
}

func TestGateway_ExecutionWithoutIDGetsSyntheticID(t *testing.T) {
	script := newScriptedGateway()
	gw := dialTestGateway(t, script, 1)

	sub := gw.Events().Subscribe(func(ev Event) bool {
		_, ok := ev.(Execution)
		return ok
	})
	defer sub.Cancel()

	script.send <- map[string]interface{}{
		"type":     "execDetails",
		"orderId":  7,
		"symbol":   "AAPL",
		"side":     "BUY",
		"quantity": 10.0,
		"price":    187.5,
		"time":     "20260831 10:15:00",
	}

	select {
	case ev := <-sub.C:
		exec := ev.(Execution)
		assert.True(t, strings.HasPrefix(exec.ExecID, "synth-"))
		assert.Equal(t, "AAPL", exec.Symbol)
	case <-time.After(time.Second):
		t.Fatal("event never published")
	}
}

func TestGateway_PlaceOrderFrame(t *testing.T) {
	script := newScriptedGateway()
	gw := dialTestGateway(t, script, 1)

	err := gw.PlaceOrder(context.Background(), types.Order{
		ID:        42,
		Symbol:    "AAPL",
		Action:    types.Buy,
		Quantity:  10,
		OrderType: "MKT",
	})
	require.NoError(t, err)

	frame := recvFrame(t, script)
	assert.Equal(t, "placeOrder", frame["type"])
	assert.Equal(t, 42.0, frame["orderId"])
	assert.Equal(t, "AAPL", frame["symbol"])
	assert.Equal(t, "BUY", frame["action"])
	assert.Equal(t, "MKT", frame["orderType"])
	assert.Equal(t, "DAY", frame["tif"])
}

func TestGateway_CancelAndSnapshotFrames(t *testing.T) {
	script := newScriptedGateway()
	gw := dialTestGateway(t, script, 1)

	require.NoError(t, gw.CancelOrder(context.Background(), 42))
	frame := recvFrame(t, script)
	assert.Equal(t, "cancelOrder", frame["type"])
	assert.Equal(t, 42.0, frame["orderId"])

	require.NoError(t, gw.RequestOpenOrders(context.Background()))
	assert.Equal(t, "reqOpenOrders", recvFrame(t, script)["type"])

	require.NoError(t, gw.RequestExecutions(context.Background()))
	assert.Equal(t, "reqExecutions", recvFrame(t, script)["type"])
}

func TestGateway_CommandsBeforeConnect(t *testing.T) {
	gw := NewGateway(GatewayConfig{
		URL:    "ws://127.0.0.1:1/ws",
		Logger: zap.NewNop(),
	})

	_, err := gw.NextOrderID(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, gw.PlaceOrder(context.Background(), types.Order{}), ErrNotConnected)
	assert.ErrorIs(t, gw.CancelOrder(context.Background(), 1), ErrNotConnected)
	assert.ErrorIs(t, gw.RequestOpenOrders(context.Background()), ErrNotConnected)
}

func TestGatewayFrame_UnknownTypeIgnored(t *testing.T) {
	var frame gatewayFrame
	require.NoError(t, json.Unmarshal([]byte(`{"type":"pong"}`), &frame))
	assert.Nil(t, frame.toEvent())
}
