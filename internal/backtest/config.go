package backtest

import (
	"time"

	"github.com/yourusername/stock-insight/internal/config"
)

// BacktestConfig holds the execution parameters for one run.
type BacktestConfig struct {
	InitialCapital   float64
	PositionFraction float64
	LotSize          int64
	MinShares        int64
	FeeRate          float64
	TaxRate          float64
	SlippageRate     float64
	RiskFreeRate     float64
	StartDate        time.Time
	EndDate          time.Time
}

// FromAppConfig builds a run configuration from the application config.
func FromAppConfig(cfg config.BacktestConfig) BacktestConfig {
	return BacktestConfig{
		InitialCapital:   cfg.InitialCapital,
		PositionFraction: cfg.PositionFraction,
		LotSize:          cfg.LotSize,
		MinShares:        cfg.MinShares,
		FeeRate:          cfg.FeeRate,
		TaxRate:          cfg.TaxRate,
		SlippageRate:     cfg.SlippageRate,
		RiskFreeRate:     cfg.RiskFreeRate,
	}
}

// riskFreeByYear tabulates annual risk-free rates, approximated from Taiwan
// one-year deposit rates. Years outside the table use the configured default.
var riskFreeByYear = map[int]float64{
	2019: 0.0105,
	2020: 0.0077,
	2021: 0.0077,
	2022: 0.0117,
	2023: 0.0160,
	2024: 0.0160,
	2025: 0.0155,
}

// riskFreeRateFor picks the rate for the run's final calendar year.
func riskFreeRateFor(year int, fallback float64) float64 {
	if rate, ok := riskFreeByYear[year]; ok {
		return rate
	}
	if fallback > 0 {
		return fallback
	}
	return 0.01
}
