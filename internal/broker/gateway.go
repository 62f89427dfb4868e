package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/msandoval/tradeterm/pkg/types"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by gateway commands issued without an
// established session.
var ErrNotConnected = errors.New("gateway not connected")

// Gateway is the websocket client for the brokerage gateway. It implements
// Conn: commands are encoded as JSON frames, and every inbound frame is
// decoded and published to the Hub.
type Gateway struct {
	url     string
	account string
	logger  *zap.Logger
	config  GatewayConfig

	hub *Hub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	connected atomic.Bool
	nextID    atomic.Int64 // id pool seeded by the handshake, 0 before
}

// GatewayConfig holds gateway client configuration.
type GatewayConfig struct {
	URL                  string
	Account              string
	DialTimeout          time.Duration
	ReconnectInitialWait time.Duration
	ReconnectMaxWait     time.Duration
	EventBufferSize      int
	Logger               *zap.Logger
}

// NewGateway creates a gateway client. Connect must be called before any
// command.
func NewGateway(cfg GatewayConfig) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())

	return &Gateway{
		url:     cfg.URL,
		account: cfg.Account,
		logger:  cfg.Logger,
		config:  cfg,
		hub:     NewHub(cfg.EventBufferSize, cfg.Logger),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect dials the gateway, performs the handshake and starts the read and
// reconnect loops.
func (g *Gateway) Connect(ctx context.Context) error {
	err := g.dial(ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	g.wg.Add(2)
	go g.readLoop()
	go g.reconnectLoop()

	return nil
}

// dial establishes the websocket connection and completes the auth/hello
// handshake, which yields the session's next-valid-order-id.
func (g *Gateway) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: g.config.DialTimeout,
	}

	g.logger.Info("connecting-to-gateway", zap.String("url", g.url))

	conn, _, err := dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	err = conn.WriteJSON(map[string]interface{}{
		"type":    "auth",
		"account": g.account,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("write auth: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(g.config.DialTimeout))

	var hello gatewayFrame
	err = conn.ReadJSON(&hello)
	if err != nil {
		conn.Close()
		return fmt.Errorf("read hello: %w", err)
	}

	if hello.Type != "hello" || hello.NextOrderID <= 0 {
		conn.Close()
		return fmt.Errorf("unexpected handshake frame %q", hello.Type)
	}

	_ = conn.SetReadDeadline(time.Time{})

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	g.nextID.Store(hello.NextOrderID)
	g.connected.Store(true)
	ConnectedGauge.Set(1)

	g.logger.Info("gateway-connected",
		zap.String("account", g.account),
		zap.Int64("next-order-id", hello.NextOrderID))

	return nil
}

// Connected reports whether the gateway session is established.
func (g *Gateway) Connected() bool {
	return g.connected.Load()
}

// Events returns the gateway event hub.
func (g *Gateway) Events() *Hub {
	return g.hub
}

// NextOrderID allocates the next broker order id. Ids are handed out from
// the pool seeded by the handshake; when the pool is not seeded yet, a
// reqIds round-trip is issued and the caller's context bounds the wait.
func (g *Gateway) NextOrderID(ctx context.Context) (int64, error) {
	if !g.connected.Load() {
		return 0, ErrNotConnected
	}

	if g.nextID.Load() > 0 {
		return g.nextID.Add(1) - 1, nil
	}

	sub := g.hub.Subscribe(func(ev Event) bool {
		_, ok := ev.(NextID)
		return ok
	})
	defer sub.Cancel()

	err := g.writeFrame(map[string]interface{}{"type": "reqIds"})
	if err != nil {
		return 0, fmt.Errorf("request ids: %w", err)
	}

	select {
	case ev := <-sub.C:
		next, _ := ev.(NextID)
		g.nextID.Store(next.OrderID + 1)
		return next.OrderID, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("await next order id: %w", ctx.Err())
	}
}

// PlaceOrder submits an order frame under a previously allocated id.
func (g *Gateway) PlaceOrder(ctx context.Context, order types.Order) error {
	if !g.connected.Load() {
		return ErrNotConnected
	}

	return g.writeFrame(map[string]interface{}{
		"type":      "placeOrder",
		"orderId":   order.ID,
		"symbol":    order.Symbol,
		"action":    string(order.Action),
		"quantity":  order.Quantity,
		"orderType": order.OrderType,
		"tif":       "DAY",
	})
}

// CancelOrder requests cancellation of an open order.
func (g *Gateway) CancelOrder(ctx context.Context, orderID int64) error {
	if !g.connected.Load() {
		return ErrNotConnected
	}

	return g.writeFrame(map[string]interface{}{
		"type":    "cancelOrder",
		"orderId": orderID,
	})
}

// RequestOpenOrders asks for a fresh open-orders snapshot.
func (g *Gateway) RequestOpenOrders(ctx context.Context) error {
	if !g.connected.Load() {
		return ErrNotConnected
	}

	return g.writeFrame(map[string]interface{}{"type": "reqOpenOrders"})
}

// RequestExecutions asks for a replay of this session's execution details.
func (g *Gateway) RequestExecutions(ctx context.Context) error {
	if !g.connected.Load() {
		return ErrNotConnected
	}

	return g.writeFrame(map[string]interface{}{"type": "reqExecutions"})
}

func (g *Gateway) writeFrame(frame map[string]interface{}) error {
	g.mu.RLock()
	conn := g.conn
	g.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	err := conn.WriteJSON(frame)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// gatewayFrame is the envelope for every inbound frame.
type gatewayFrame struct {
	Type string `json:"type"`

	// hello / nextValidId
	NextOrderID int64 `json:"nextOrderId"`

	// order fields
	OrderID      int64   `json:"orderId"`
	Symbol       string  `json:"symbol"`
	Action       string  `json:"action"`
	Quantity     float64 `json:"quantity"`
	OrderType    string  `json:"orderType"`
	Status       string  `json:"status"`
	Filled       float64 `json:"filled"`
	Remaining    float64 `json:"remaining"`
	AvgFillPrice float64 `json:"avgFillPrice"`

	// execution fields
	ExecID string  `json:"execId"`
	Side   string  `json:"side"`
	Price  float64 `json:"price"`
	Time   string  `json:"time"`

	// error fields
	Code    int    `json:"code"`
	Message string `json:"message"`

	// account summary fields
	Account        string   `json:"account"`
	NetLiquidation float64  `json:"netLiquidation"`
	Cash           *float64 `json:"cash"`
}

// readLoop decodes inbound frames and publishes them to the hub.
func (g *Gateway) readLoop() {
	defer g.wg.Done()

	for {
		select {
		case <-g.ctx.Done():
			return
		default:
		}

		g.mu.RLock()
		conn := g.conn
		g.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			g.logger.Warn("gateway-read-error", zap.Error(err))
			g.connected.Store(false)
			ConnectedGauge.Set(0)
			return
		}

		var frame gatewayFrame
		err = json.Unmarshal(message, &frame)
		if err != nil {
			g.logger.Debug("gateway-unparseable-frame",
				zap.Error(err),
				zap.Int("bytes", len(message)))
			continue
		}

		ev := frame.toEvent()
		if ev == nil {
			g.logger.Debug("gateway-unknown-frame", zap.String("type", frame.Type))
			continue
		}

		EventsReceivedTotal.WithLabelValues(frame.Type).Inc()
		g.hub.Publish(ev)
	}
}

func (f *gatewayFrame) toEvent() Event {
	switch f.Type {
	case "orderStatus":
		return OrderStatus{
			OrderID:      f.OrderID,
			Status:       types.OrderStatus(f.Status),
			Filled:       f.Filled,
			Remaining:    f.Remaining,
			AvgFillPrice: f.AvgFillPrice,
		}
	case "openOrder":
		return OpenOrder{Order: types.Order{
			ID:           f.OrderID,
			Symbol:       f.Symbol,
			Action:       types.OrderAction(f.Action),
			Quantity:     int64(f.Quantity),
			OrderType:    f.OrderType,
			Status:       types.OrderStatus(f.Status),
			Filled:       f.Filled,
			Remaining:    f.Remaining,
			AvgFillPrice: f.AvgFillPrice,
			UpdatedAt:    time.Now(),
		}}
	case "openOrderEnd":
		return OpenOrdersEnd{}
	case "execDetails":
		execID := f.ExecID
		if execID == "" {
			// Some venues report fills without an execution id; a
			// synthetic one keeps the ledger dedup key stable.
			execID = "synth-" + uuid.NewString()
		}
		return Execution{
			ExecID:   execID,
			OrderID:  f.OrderID,
			Symbol:   f.Symbol,
			Side:     types.OrderAction(f.Side),
			Quantity: f.Quantity,
			Price:    f.Price,
			Time:     f.Time,
		}
	case "error":
		orderID := f.OrderID
		if orderID < 0 {
			orderID = 0
		}
		return Error{OrderID: orderID, Code: f.Code, Message: f.Message}
	case "accountSummary":
		return AccountSummary{
			Account:        f.Account,
			NetLiquidation: f.NetLiquidation,
			Cash:           f.Cash,
		}
	case "nextValidId":
		return NextID{OrderID: f.NextOrderID}
	default:
		return nil
	}
}

// reconnectLoop redials with exponential backoff whenever the connection
// drops, then restarts the read loop.
func (g *Gateway) reconnectLoop() {
	defer g.wg.Done()

	for {
		select {
		case <-g.ctx.Done():
			return
		default:
		}

		if g.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		g.logger.Warn("gateway-connection-lost-reconnecting")

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = g.config.ReconnectInitialWait
		bo.MaxInterval = g.config.ReconnectMaxWait
		bo.MaxElapsedTime = 0

		err := backoff.Retry(func() error {
			ReconnectsTotal.Inc()
			return g.dial(g.ctx)
		}, backoff.WithContext(bo, g.ctx))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			g.logger.Error("gateway-reconnect-failed", zap.Error(err))
			continue
		}

		g.logger.Info("gateway-reconnected")

		g.wg.Add(1)
		go g.readLoop()
	}
}

// Close shuts the gateway down and waits for its loops to exit.
func (g *Gateway) Close() error {
	g.logger.Info("closing-gateway")

	g.cancel()

	g.mu.RLock()
	if g.conn != nil {
		g.conn.Close()
	}
	g.mu.RUnlock()

	g.wg.Wait()

	g.connected.Store(false)
	ConnectedGauge.Set(0)

	g.logger.Info("gateway-closed")

	return nil
}
