package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/msandoval/tradeterm/internal/history"
	"github.com/msandoval/tradeterm/internal/orders"
	"github.com/msandoval/tradeterm/pkg/types"
	"go.uber.org/zap"
)

// apiHandler serves JSON views over the registry and the ledgers.
type apiHandler struct {
	registry  *orders.Registry
	store     *history.Store
	equityLog *history.EquityLog
	logger    *zap.Logger
}

func newAPIHandler(registry *orders.Registry, store *history.Store, equityLog *history.EquityLog, logger *zap.Logger) *apiHandler {
	return &apiHandler{
		registry:  registry,
		store:     store,
		equityLog: equityLog,
		logger:    logger,
	}
}

type pendingOrderView struct {
	OrderID      int64   `json:"orderId"`
	Symbol       string  `json:"symbol"`
	Action       string  `json:"action"`
	Quantity     int64   `json:"quantity"`
	Status       string  `json:"status"`
	Filled       float64 `json:"filled"`
	Remaining    float64 `json:"remaining"`
	AvgFillPrice float64 `json:"avgFillPrice"`
	UpdatedAt    string  `json:"updatedAt"`
}

type pendingOrdersResponse struct {
	Loading bool               `json:"loading"`
	Orders  []pendingOrderView `json:"orders"`
}

func (h *apiHandler) pendingOrders(w http.ResponseWriter, r *http.Request) {
	pending := h.registry.Pending()

	views := make([]pendingOrderView, 0, len(pending))
	for _, o := range pending {
		views = append(views, pendingOrderView{
			OrderID:      o.ID,
			Symbol:       o.Symbol,
			Action:       string(o.Action),
			Quantity:     o.Quantity,
			Status:       string(o.Status),
			Filled:       o.Filled,
			Remaining:    o.Remaining,
			AvgFillPrice: o.AvgFillPrice,
			UpdatedAt:    o.UpdatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, pendingOrdersResponse{
		Loading: h.registry.Loading(),
		Orders:  views,
	})
}

func (h *apiHandler) trades(w http.ResponseWriter, r *http.Request) {
	records := h.store.Trades()

	limit := parseLimit(r, len(records))
	if limit < len(records) {
		records = records[len(records)-limit:]
	}

	writeJSON(w, http.StatusOK, records)
}

func (h *apiHandler) equity(w http.ResponseWriter, r *http.Request) {
	points := h.equityLog.Points()

	limit := parseLimit(r, len(points))
	if limit < len(points) {
		points = points[len(points)-limit:]
	}

	if points == nil {
		points = []types.EquityPoint{}
	}

	writeJSON(w, http.StatusOK, points)
}

// parseLimit reads ?limit=N, defaulting to everything.
func parseLimit(r *http.Request, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return max
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > max {
		return max
	}

	return n
}
