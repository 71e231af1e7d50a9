package backtest

import (
	"time"

	"github.com/yourusername/stock-insight/internal/models"
)

// BacktestState is the mutable account of one run: cash, open positions, the
// trade log and the daily equity curve. It belongs to exactly one engine run
// and is returned to the caller when the run completes.
type BacktestState struct {
	Cash        float64
	Positions   map[string]*models.Position
	Trades      []models.Trade
	EquityCurve []models.EquityPoint

	TotalFees     float64
	TotalTax      float64
	TotalSlippage float64
}

// NewBacktestState initializes state with the starting capital.
func NewBacktestState(initialCapital float64) *BacktestState {
	return &BacktestState{
		Cash:      initialCapital,
		Positions: make(map[string]*models.Position),
	}
}

// Position returns the open position for a stock, or nil.
func (s *BacktestState) Position(stockID string) *models.Position {
	return s.Positions[stockID]
}

// RecordTrade appends a fill and accumulates its cost components.
func (s *BacktestState) RecordTrade(trade models.Trade) {
	s.Trades = append(s.Trades, trade)
	s.TotalFees += trade.Fee
	s.TotalTax += trade.Tax
	s.TotalSlippage += trade.Slippage
}

// RecordEquity appends one day's mark-to-market account value: cash plus
// open positions at the given closing price.
func (s *BacktestState) RecordEquity(date time.Time, closes map[string]float64) {
	value := s.Cash
	for stockID, position := range s.Positions {
		if price, ok := closes[stockID]; ok && price > 0 {
			value += float64(position.Shares) * price
		} else {
			value += float64(position.Shares) * position.AvgCost
		}
	}
	s.EquityCurve = append(s.EquityCurve, models.EquityPoint{Date: date, Value: value})
}
