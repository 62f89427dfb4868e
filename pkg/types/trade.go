package types

// TradeRecord is one executed fill, persisted in the per-account trade
// ledger. ID is the stable dedup key (the broker execution id, or a
// synthetic one when the broker reports a fill without an id).
type TradeRecord struct {
	ID       string      `json:"id"`
	Symbol   string      `json:"symbol"`
	Side     OrderAction `json:"side"`
	Quantity float64     `json:"quantity"`
	Price    float64     `json:"price"`
	Time     string      `json:"time"`
	OrderID  int64       `json:"orderId"`
}

// EquityPoint is one (timestamp, net-liquidation, cash) portfolio sample.
// TS is epoch milliseconds; Cash is nil when the broker did not report it.
type EquityPoint struct {
	TS             int64    `json:"ts"`
	NetLiquidation float64  `json:"netLiquidation"`
	Cash           *float64 `json:"cash"`
}
