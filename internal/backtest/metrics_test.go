package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/stock-insight/internal/models"
)

func equityCurve(values ...float64) []models.EquityPoint {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	curve := make([]models.EquityPoint, len(values))
	for i, v := range values {
		curve[i] = models.EquityPoint{Date: base.AddDate(0, 0, i), Value: v}
	}
	return curve
}

func sellTrade(profit float64) models.Trade {
	p := profit
	return models.Trade{Type: models.TradeTypeSell, Shares: 1000, Profit: &p}
}

func TestMaxDrawdown(t *testing.T) {
	// Peak 120 to trough 90 is a 25% drawdown; the later 110 does not recover
	// a new peak.
	curve := equityCurve(100, 120, 90, 110)
	assert.InDelta(t, 0.25, maxDrawdown(curve), 1e-9)

	assert.Equal(t, 0.0, maxDrawdown(equityCurve(100, 110, 120)))
	assert.Equal(t, 0.0, maxDrawdown(nil))
}

func TestSharpeRatioZeroVolatility(t *testing.T) {
	assert.Equal(t, 0.0, sharpeRatio([]float64{0.01, 0.01, 0.01}, 0.0155))
	assert.Equal(t, 0.0, sharpeRatio(nil, 0.0155))
}

func TestSharpeRatioSign(t *testing.T) {
	gains := []float64{0.01, 0.02, 0.015, 0.005}
	losses := []float64{-0.01, -0.02, -0.015, -0.005}
	assert.Greater(t, sharpeRatio(gains, 0.01), 0.0)
	assert.Less(t, sharpeRatio(losses, 0.01), 0.0)
}

// TestAnnualize tests the compounding conversion at a whole trading year
func TestAnnualize(t *testing.T) {
	assert.InDelta(t, 1.0, annualize(100, 200, tradingDaysPerYear), 1e-9)
	// Half a year of doubling compounds to 3x annualized.
	assert.InDelta(t, 3.0, annualize(100, 200, tradingDaysPerYear/2), 1e-9)
	assert.Equal(t, 0.0, annualize(0, 200, 252))
	assert.Equal(t, 0.0, annualize(100, 200, 0))
}

func TestDailyReturns(t *testing.T) {
	returns := dailyReturns(equityCurve(100, 110, 99))
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)
	assert.Nil(t, dailyReturns(equityCurve(100)))
}

func TestCalculateStatsTradeBreakdown(t *testing.T) {
	state := NewBacktestState(100_000)
	state.EquityCurve = equityCurve(100_000, 101_000, 102_000)
	state.Trades = []models.Trade{
		{Type: models.TradeTypeBuy, Shares: 1000},
		sellTrade(3000),
		sellTrade(2000),
		sellTrade(-1000),
	}

	start := state.EquityCurve[0].Date
	end := state.EquityCurve[2].Date
	stats := CalculateStats(state, BacktestConfig{InitialCapital: 100_000}, start, end)

	assert.Equal(t, 4, stats.TotalTrades)
	assert.Equal(t, 3, stats.ClosedTrades)
	assert.Equal(t, 2, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.InDelta(t, 2.0/3.0, stats.WinRate, 1e-9)
	assert.InDelta(t, 5.0, stats.ProfitFactor, 1e-9)
	assert.InDelta(t, 0.02, stats.TotalReturn, 1e-9)
	assert.Equal(t, 102_000.0, stats.FinalEquity)
	assert.Equal(t, 3, stats.TradingDays)
}

// TestCalculateStatsProfitFactorNoLosses tests that all-winning runs report an
// infinite profit factor rather than a division artifact
func TestCalculateStatsProfitFactorNoLosses(t *testing.T) {
	state := NewBacktestState(100_000)
	state.EquityCurve = equityCurve(100_000, 105_000)
	state.Trades = []models.Trade{sellTrade(5000)}

	stats := CalculateStats(state, BacktestConfig{InitialCapital: 100_000},
		state.EquityCurve[0].Date, state.EquityCurve[1].Date)
	assert.True(t, math.IsInf(stats.ProfitFactor, 1))
	assert.Equal(t, 1.0, stats.WinRate)
}

func TestCalculateStatsEmptyCurve(t *testing.T) {
	state := NewBacktestState(100_000)
	stats := CalculateStats(state, BacktestConfig{InitialCapital: 100_000}, time.Time{}, time.Time{})
	assert.Equal(t, 0.0, stats.FinalEquity)
	assert.Equal(t, 0, stats.TradingDays)
}

func TestRiskFreeRateFor(t *testing.T) {
	assert.Equal(t, 0.0155, riskFreeRateFor(2025, 0.03))
	assert.Equal(t, 0.0160, riskFreeRateFor(2023, 0))
	// Outside the table the configured rate wins, then the 1% default.
	assert.Equal(t, 0.03, riskFreeRateFor(2030, 0.03))
	assert.Equal(t, 0.01, riskFreeRateFor(2030, 0))
}
