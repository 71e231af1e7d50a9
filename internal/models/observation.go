package models

import "time"

// DailyBar is a single day of OHLCV data for one stock.
type DailyBar struct {
	StockID string    `db:"stock_id" json:"stock_id"`
	Date    time.Time `db:"date" json:"date"`
	Open    float64   `db:"open" json:"open"`
	High    float64   `db:"high" json:"high"`
	Low     float64   `db:"low" json:"low"`
	Close   float64   `db:"close" json:"close"`
	Volume  float64   `db:"volume" json:"volume"`
}

// Fundamentals holds the optional fundamental snapshot for a stock.
type Fundamentals struct {
	PERatio       float64 `json:"pe_ratio"`
	PBRatio       float64 `json:"pb_ratio"`
	DividendYield float64 `json:"dividend_yield"`
	EPSGrowth     float64 `json:"eps_growth"`
	RevenueGrowth float64 `json:"revenue_growth"`
	ROE           float64 `json:"roe"`
	GrossMargin   float64 `json:"gross_margin"`
	DebtRatio     float64 `json:"debt_ratio"`
}

// InstitutionalFlow holds the optional three-institution chip flow for a day.
// Net values are in shares; positive means net buying.
type InstitutionalFlow struct {
	ForeignNet    float64 `json:"foreign_net"`
	TrustNet      float64 `json:"trust_net"`
	DealerNet     float64 `json:"dealer_net"`
	ForeignStreak int     `json:"foreign_streak"`
}

// MarketContext holds optional broad-market fields for the same day.
type MarketContext struct {
	MarketReturn      float64 `json:"market_return"`
	MarketRSI         float64 `json:"market_rsi"`
	MarketVolumeRatio float64 `json:"market_volume_ratio"`
	SectorStrength    float64 `json:"sector_strength"`
}

// StockObservation is a single day's full view of one stock: the price bar
// plus whatever optional fundamentals, chip flow and market context the data
// providers returned. Optional blocks are nil when the provider had nothing.
type StockObservation struct {
	StockID      string             `json:"stock_id"`
	Date         time.Time          `json:"date"`
	Bar          DailyBar           `json:"bar"`
	Fundamentals *Fundamentals      `json:"fundamentals,omitempty"`
	Flow         *InstitutionalFlow `json:"flow,omitempty"`
	Market       *MarketContext     `json:"market,omitempty"`
	AIScore      *float64           `json:"ai_score,omitempty"`
}
