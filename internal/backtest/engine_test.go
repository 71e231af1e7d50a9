package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/stock-insight/internal/models"
	"github.com/yourusername/stock-insight/internal/strategy"
)

// scriptStrategy replays a fixed action per day index, holding otherwise.
type scriptStrategy struct {
	actions map[int]strategy.Action
}

func (s scriptStrategy) Name() string { return "script" }
func (s scriptStrategy) MinBars() int { return 1 }
func (s scriptStrategy) Evaluate(history []models.DailyBar) strategy.Signal {
	if action, ok := s.actions[len(history)-1]; ok {
		return strategy.Signal{Action: action, Reason: "scripted"}
	}
	return strategy.Signal{Action: strategy.ActionHold, Reason: "scripted hold"}
}

func flatBars(stockID string, days int, price float64) []models.DailyBar {
	bars := make([]models.DailyBar, days)
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = models.DailyBar{
			StockID: stockID,
			Date:    base.AddDate(0, 0, i),
			Open:    price, High: price, Low: price, Close: price,
			Volume: 1_000_000,
		}
	}
	return bars
}

func frictionlessConfig(capital float64) BacktestConfig {
	return BacktestConfig{
		InitialCapital:   capital,
		PositionFraction: 1.0,
		LotSize:          1000,
		MinShares:        1,
	}
}

// TestRunFlatSeriesNoTrades tests that a hold-only run keeps equity pinned to
// the initial capital
func TestRunFlatSeriesNoTrades(t *testing.T) {
	engine := NewEngine(frictionlessConfig(100_000), nil)
	bars := flatBars("2330", 25, 100)

	result, err := engine.Run(context.Background(), "2330", bars, scriptStrategy{})
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	require.Len(t, result.EquityCurve, 25)
	for _, point := range result.EquityCurve {
		assert.Equal(t, 100_000.0, point.Value)
	}
	assert.Equal(t, 0.0, result.Stats.TotalReturn)
	assert.Equal(t, 0.0, result.Stats.MaxDrawdown)
	assert.Equal(t, 0.0, result.Stats.SharpeRatio)
}

// TestRunFrictionlessRoundTrip tests the exact arithmetic of one buy/sell
// cycle with no fees, tax or slippage
func TestRunFrictionlessRoundTrip(t *testing.T) {
	engine := NewEngine(frictionlessConfig(1_000_000), nil)

	bars := flatBars("2330", 25, 100)
	last := len(bars) - 1
	bars[last].Open, bars[last].High, bars[last].Low, bars[last].Close = 110, 110, 110, 110

	strat := scriptStrategy{actions: map[int]strategy.Action{
		20:   strategy.ActionBuy,
		last: strategy.ActionSell,
	}}

	result, err := engine.Run(context.Background(), "2330", bars, strat)
	require.NoError(t, err)
	require.Len(t, result.Trades, 2)

	buy, sell := result.Trades[0], result.Trades[1]
	assert.Equal(t, models.TradeTypeBuy, buy.Type)
	assert.Equal(t, int64(10_000), buy.Shares)
	assert.Equal(t, 100.0, buy.ExecutedPrice)

	assert.Equal(t, models.TradeTypeSell, sell.Type)
	assert.Equal(t, int64(10_000), sell.Shares)
	require.NotNil(t, sell.Profit)
	assert.Equal(t, 100_000.0, *sell.Profit)

	assert.Equal(t, 1_100_000.0, result.Stats.FinalEquity)
	assert.InDelta(t, 0.1, result.Stats.TotalReturn, 1e-9)
	assert.Equal(t, 1, result.Stats.ClosedTrades)
	assert.Equal(t, 1.0, result.Stats.WinRate)
	assert.True(t, result.Stats.ProfitFactor > 1e12) // no losing trades
}

func TestRunAppliesFrictions(t *testing.T) {
	cfg := frictionlessConfig(1_000_000)
	cfg.FeeRate = 0.001425
	cfg.TaxRate = 0.003
	cfg.SlippageRate = 0.001
	engine := NewEngine(cfg, nil)

	bars := flatBars("2330", 25, 100)
	last := len(bars) - 1
	strat := scriptStrategy{actions: map[int]strategy.Action{
		20:   strategy.ActionBuy,
		last: strategy.ActionSell,
	}}

	result, err := engine.Run(context.Background(), "2330", bars, strat)
	require.NoError(t, err)
	require.Len(t, result.Trades, 2)

	buy := result.Trades[0]
	// Slippage moves the fill against the buyer.
	assert.InDelta(t, 100.1, buy.ExecutedPrice, 1e-9)
	assert.Greater(t, buy.Fee, 0.0)
	assert.Equal(t, 0.0, buy.Tax)

	sell := result.Trades[1]
	assert.InDelta(t, 99.9, sell.ExecutedPrice, 1e-9)
	assert.Greater(t, sell.Tax, 0.0)

	// A flat market round trip loses exactly the frictions.
	require.NotNil(t, sell.Profit)
	assert.Less(t, *sell.Profit, 0.0)
	assert.Greater(t, result.Stats.TotalFees, 0.0)
	assert.Greater(t, result.Stats.TotalTax, 0.0)
	assert.Greater(t, result.Stats.TotalSlippage, 0.0)
	assert.Less(t, result.Stats.FinalEquity, 1_000_000.0)
}

// TestBuyLotRounding tests round-down to whole lots
func TestBuyLotRounding(t *testing.T) {
	engine := NewEngine(frictionlessConfig(150_000), nil)
	bars := flatBars("2330", 21, 100)
	strat := scriptStrategy{actions: map[int]strategy.Action{20: strategy.ActionBuy}}

	result, err := engine.Run(context.Background(), "2330", bars, strat)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	// 1500 affordable shares round down to one lot of 1000.
	assert.Equal(t, int64(1000), result.Trades[0].Shares)
}

// TestBuyOddLotFallback tests the odd-lot path when a full lot is out of
// reach
func TestBuyOddLotFallback(t *testing.T) {
	engine := NewEngine(frictionlessConfig(50_000), nil)
	bars := flatBars("2330", 21, 100)
	strat := scriptStrategy{actions: map[int]strategy.Action{20: strategy.ActionBuy}}

	result, err := engine.Run(context.Background(), "2330", bars, strat)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, int64(500), result.Trades[0].Shares)
}

func TestBuyMinSharesGate(t *testing.T) {
	cfg := frictionlessConfig(50_000)
	cfg.MinShares = 1000
	engine := NewEngine(cfg, nil)
	bars := flatBars("2330", 21, 100)
	strat := scriptStrategy{actions: map[int]strategy.Action{20: strategy.ActionBuy}}

	result, err := engine.Run(context.Background(), "2330", bars, strat)
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
}

// TestSellWithoutPosition tests that a sell signal with nothing held is a
// silent no-op
func TestSellWithoutPosition(t *testing.T) {
	engine := NewEngine(frictionlessConfig(100_000), nil)
	bars := flatBars("2330", 21, 100)
	strat := scriptStrategy{actions: map[int]strategy.Action{20: strategy.ActionSell}}

	result, err := engine.Run(context.Background(), "2330", bars, strat)
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
}

func TestRunInsufficientHistory(t *testing.T) {
	engine := NewEngine(frictionlessConfig(100_000), nil)
	bars := flatBars("2330", 5, 100)

	_, err := engine.Run(context.Background(), "2330", bars, scriptStrategy{})
	require.Error(t, err)
	assert.True(t, IsInsufficientHistory(err))

	var insufficient *InsufficientHistoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 20, insufficient.Required)
	assert.Equal(t, 5, insufficient.Available)
	assert.NotEmpty(t, insufficient.Remediation)
}

func TestRunInsufficientHistoryUsesStrategyMinimum(t *testing.T) {
	engine := NewEngine(frictionlessConfig(100_000), nil)
	bars := flatBars("2330", 30, 100)

	// A 60-day strategy raises the floor above the 20-bar default.
	strat := strategy.NewMACross(10, 60)
	_, err := engine.Run(context.Background(), "2330", bars, strat)
	require.Error(t, err)

	var insufficient *InsufficientHistoryError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 61, insufficient.Required)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	engine := NewEngine(frictionlessConfig(100_000), nil)
	bars := flatBars("2330", 25, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, "2330", bars, scriptStrategy{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuyAveragesCostBasis(t *testing.T) {
	cfg := frictionlessConfig(1_000_000)
	cfg.PositionFraction = 0.5
	engine := NewEngine(cfg, nil)

	bars := flatBars("2330", 23, 100)
	bars[21].Open, bars[21].High, bars[21].Low, bars[21].Close = 120, 120, 120, 120
	bars[22].Open, bars[22].High, bars[22].Low, bars[22].Close = 120, 120, 120, 120

	strat := scriptStrategy{actions: map[int]strategy.Action{
		20: strategy.ActionBuy,
		21: strategy.ActionBuy,
		22: strategy.ActionSell,
	}}

	result, err := engine.Run(context.Background(), "2330", bars, strat)
	require.NoError(t, err)
	require.Len(t, result.Trades, 3)

	// 5000 shares at 100 plus 2000 shares at 120 average to 105.71...
	first, second, sell := result.Trades[0], result.Trades[1], result.Trades[2]
	assert.Equal(t, int64(5000), first.Shares)
	assert.Equal(t, int64(2000), second.Shares)
	assert.Equal(t, int64(7000), sell.Shares)

	require.NotNil(t, sell.Profit)
	// Proceeds 7000*120 minus cost 5000*100 + 2000*120.
	assert.InDelta(t, 100_000.0, *sell.Profit, 1e-6)
}
