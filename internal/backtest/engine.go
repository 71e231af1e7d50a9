package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/models"
	"github.com/yourusername/stock-insight/internal/strategy"
)

// minHistoryBars is the floor on usable price history for any strategy.
const minHistoryBars = 20

// Engine simulates strategy execution over one stock's daily bars. Each run
// owns a fresh BacktestState; engines are safe to reuse sequentially.
type Engine struct {
	config BacktestConfig
	logger *logrus.Logger
}

// NewEngine creates a backtest engine.
func NewEngine(cfg BacktestConfig, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{config: cfg, logger: logger}
}

// Config returns the run configuration.
func (e *Engine) Config() BacktestConfig {
	return e.config
}

// Result is the full outcome of one backtest run.
type Result struct {
	StockID     string               `json:"stock_id"`
	Strategy    string               `json:"strategy"`
	StartDate   time.Time            `json:"start_date"`
	EndDate     time.Time            `json:"end_date"`
	Stats       Stats                `json:"stats"`
	Trades      []models.Trade       `json:"trades"`
	EquityCurve []models.EquityPoint `json:"daily_equity_curve"`
}

// Run replays the bars one trading day at a time, handing the strategy the
// history up to and including each day and executing its signals. Bars must
// be ordered oldest to newest.
func (e *Engine) Run(ctx context.Context, stockID string, bars []models.DailyBar, strat strategy.Strategy) (*Result, error) {
	required := minHistoryBars
	if strat.MinBars() > required {
		required = strat.MinBars()
	}
	if len(bars) < required {
		return nil, &InsufficientHistoryError{
			StockID:     stockID,
			Strategy:    strat.Name(),
			Required:    required,
			Available:   len(bars),
			Remediation: fmt.Sprintf("fetch at least %d daily bars before backtesting", required),
		}
	}

	e.logger.WithFields(logrus.Fields{
		"stock_id": stockID,
		"strategy": strat.Name(),
		"days":     len(bars),
	}).Info("Starting backtest run")

	state := NewBacktestState(e.config.InitialCapital)

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		signal := strat.Evaluate(bars[:i+1])

		switch signal.Action {
		case strategy.ActionBuy:
			e.executeBuy(state, bar, signal.Reason)
		case strategy.ActionSell:
			e.executeSell(state, bar, signal.Reason)
		}

		state.RecordEquity(bar.Date, map[string]float64{stockID: bar.Close})
	}

	result := &Result{
		StockID:     stockID,
		Strategy:    strat.Name(),
		StartDate:   bars[0].Date,
		EndDate:     bars[len(bars)-1].Date,
		Trades:      state.Trades,
		EquityCurve: state.EquityCurve,
	}
	result.Stats = CalculateStats(state, e.config, bars[0].Date, bars[len(bars)-1].Date)

	e.logger.WithFields(logrus.Fields{
		"stock_id":     stockID,
		"trades":       len(result.Trades),
		"total_return": result.Stats.TotalReturn,
		"max_drawdown": result.Stats.MaxDrawdown,
	}).Info("Backtest run completed")
	return result, nil
}

// executeBuy sizes an order from a fraction of cash, rounds down to whole
// lots with an odd-lot fallback, and fills with slippage against the trader
// plus a proportional fee. An unaffordable or undersized order is a no-op.
func (e *Engine) executeBuy(state *BacktestState, bar models.DailyBar, reason string) {
	if bar.Close <= 0 || state.Cash <= 0 {
		return
	}

	requested := decimal.NewFromFloat(bar.Close)
	executed := requested.Mul(decimal.NewFromFloat(1 + e.config.SlippageRate))

	budget := decimal.NewFromFloat(state.Cash).Mul(decimal.NewFromFloat(e.config.PositionFraction))
	rawShares := budget.Div(executed).IntPart()

	lot := e.config.LotSize
	shares := rawShares / lot * lot
	if shares == 0 {
		// Odd-lot fallback when a full lot is out of reach.
		shares = rawShares
	}
	if shares < e.config.MinShares || shares <= 0 {
		return
	}

	sharesDec := decimal.NewFromInt(shares)
	gross := executed.Mul(sharesDec)
	fee := gross.Mul(decimal.NewFromFloat(e.config.FeeRate))
	cost := gross.Add(fee)
	if cost.GreaterThan(decimal.NewFromFloat(state.Cash)) {
		return
	}

	executedF, _ := executed.Float64()
	feeF, _ := fee.Float64()
	costF, _ := cost.Float64()
	slippageF, _ := executed.Sub(requested).Mul(sharesDec).Float64()

	state.Cash -= costF

	position := state.Positions[bar.StockID]
	if position == nil {
		state.Positions[bar.StockID] = &models.Position{
			StockID: bar.StockID,
			Shares:  shares,
			AvgCost: executedF,
		}
	} else {
		oldValue := decimal.NewFromFloat(position.AvgCost).Mul(decimal.NewFromInt(position.Shares))
		total := position.Shares + shares
		newAvg := oldValue.Add(gross).Div(decimal.NewFromInt(total))
		position.Shares = total
		position.AvgCost, _ = newAvg.Float64()
	}

	state.RecordTrade(models.Trade{
		Date:           bar.Date,
		Type:           models.TradeTypeBuy,
		StockID:        bar.StockID,
		RequestedPrice: bar.Close,
		ExecutedPrice:  executedF,
		Shares:         shares,
		Fee:            feeF,
		Slippage:       slippageF,
		Reason:         reason,
	})
}

// executeSell liquidates the whole position with slippage against the
// trader, a proportional fee and the sell-side transaction tax. Holding
// nothing is a no-op, not an error.
func (e *Engine) executeSell(state *BacktestState, bar models.DailyBar, reason string) {
	position := state.Positions[bar.StockID]
	if position == nil || position.Shares <= 0 || bar.Close <= 0 {
		return
	}

	requested := decimal.NewFromFloat(bar.Close)
	executed := requested.Mul(decimal.NewFromFloat(1 - e.config.SlippageRate))
	sharesDec := decimal.NewFromInt(position.Shares)

	gross := executed.Mul(sharesDec)
	fee := gross.Mul(decimal.NewFromFloat(e.config.FeeRate))
	tax := gross.Mul(decimal.NewFromFloat(e.config.TaxRate))
	proceeds := gross.Sub(fee).Sub(tax)

	costBasis := decimal.NewFromFloat(position.AvgCost).Mul(sharesDec)
	profit, _ := proceeds.Sub(costBasis).Float64()

	executedF, _ := executed.Float64()
	feeF, _ := fee.Float64()
	taxF, _ := tax.Float64()
	proceedsF, _ := proceeds.Float64()
	slippageF, _ := requested.Sub(executed).Mul(sharesDec).Float64()

	state.Cash += proceedsF
	delete(state.Positions, bar.StockID)

	state.RecordTrade(models.Trade{
		Date:           bar.Date,
		Type:           models.TradeTypeSell,
		StockID:        bar.StockID,
		RequestedPrice: bar.Close,
		ExecutedPrice:  executedF,
		Shares:         position.Shares,
		Fee:            feeF,
		Tax:            taxF,
		Slippage:       slippageF,
		Profit:         &profit,
		Reason:         reason,
	})
}
