package backtest

import (
	"math"
	"time"

	"github.com/yourusername/stock-insight/internal/models"
)

const tradingDaysPerYear = 252

// Stats are the performance statistics derived from one run's equity curve
// and trade log. Win rate and profit factor count closed (sell) trades only.
type Stats struct {
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	WinRate          float64   `json:"win_rate"`
	ProfitFactor     float64   `json:"profit_factor"`
	TotalTrades      int       `json:"total_trades"`
	ClosedTrades     int       `json:"closed_trades"`
	WinningTrades    int       `json:"winning_trades"`
	LosingTrades     int       `json:"losing_trades"`
	TotalFees        float64   `json:"total_fees"`
	TotalTax         float64   `json:"total_tax"`
	TotalSlippage    float64   `json:"total_slippage"`
	FinalEquity      float64   `json:"final_equity"`
	RiskFreeRate     float64   `json:"risk_free_rate"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	TradingDays      int       `json:"trading_days"`
}

// CalculateStats derives statistics from a completed run.
func CalculateStats(state *BacktestState, cfg BacktestConfig, start, end time.Time) Stats {
	stats := Stats{
		StartDate:   start,
		EndDate:     end,
		TradingDays: len(state.EquityCurve),
	}
	if len(state.EquityCurve) == 0 {
		return stats
	}

	initial := cfg.InitialCapital
	final := state.EquityCurve[len(state.EquityCurve)-1].Value
	stats.FinalEquity = final
	if initial > 0 {
		stats.TotalReturn = (final - initial) / initial
		stats.AnnualizedReturn = annualize(initial, final, stats.TradingDays)
	}

	stats.MaxDrawdown = maxDrawdown(state.EquityCurve)

	stats.RiskFreeRate = riskFreeRateFor(end.Year(), cfg.RiskFreeRate)
	stats.SharpeRatio = sharpeRatio(dailyReturns(state.EquityCurve), stats.RiskFreeRate)

	stats.TotalTrades = len(state.Trades)
	stats.TotalFees = state.TotalFees
	stats.TotalTax = state.TotalTax
	stats.TotalSlippage = state.TotalSlippage

	grossProfit, grossLoss := 0.0, 0.0
	for _, trade := range state.Trades {
		if trade.Type != models.TradeTypeSell || trade.Profit == nil {
			continue
		}
		stats.ClosedTrades++
		if *trade.Profit > 0 {
			stats.WinningTrades++
			grossProfit += *trade.Profit
		} else if *trade.Profit < 0 {
			stats.LosingTrades++
			grossLoss += math.Abs(*trade.Profit)
		}
	}
	if stats.ClosedTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.ClosedTrades)
	}
	if grossLoss > 0 {
		stats.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		stats.ProfitFactor = math.Inf(1)
	}

	return stats
}

func dailyReturns(curve []models.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1].Value > 0 {
			returns = append(returns, (curve[i].Value-curve[i-1].Value)/curve[i-1].Value)
		}
	}
	return returns
}

func sharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := average(returns)
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	return (mean - riskFreeRate/tradingDaysPerYear) / std * math.Sqrt(tradingDaysPerYear)
}

func maxDrawdown(curve []models.EquityPoint) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak == 0 {
			continue
		}
		drawdown := (peak - p.Value) / peak
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}
	return maxDD
}

func annualize(initial, final float64, days int) float64 {
	if initial <= 0 || final <= 0 || days <= 0 {
		return 0
	}
	years := float64(days) / tradingDaysPerYear
	if years <= 0 {
		return 0
	}
	return math.Pow(final/initial, 1.0/years) - 1.0
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
