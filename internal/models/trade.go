package models

import "time"

// TradeType identifies the side of a simulated fill.
type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

// Trade is one immutable simulated fill. Profit is set on sells only.
type Trade struct {
	Date           time.Time `json:"date"`
	Type           TradeType `json:"type"`
	StockID        string    `json:"stock_id"`
	RequestedPrice float64   `json:"requested_price"`
	ExecutedPrice  float64   `json:"executed_price"`
	Shares         int64     `json:"shares"`
	Fee            float64   `json:"fee"`
	Tax            float64   `json:"tax"`
	Slippage       float64   `json:"slippage"`
	Profit         *float64  `json:"profit,omitempty"`
	Reason         string    `json:"reason"`
}

// Position is an open holding inside one backtest run.
type Position struct {
	StockID string  `json:"stock_id"`
	Shares  int64   `json:"shares"`
	AvgCost float64 `json:"avg_cost"`
}

// EquityPoint is one day's mark-to-market account value.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}
