// Package features converts raw stock observations into fixed-schema
// numeric feature vectors for model training and scoring.
package features

// SchemaVersion tags every vector, sample and model artifact produced by this
// extractor. Changing the canonical list below requires bumping it.
const SchemaVersion = "v55"

// canonicalNames fixes the feature order. Scaler and model columns are
// aligned to this list positionally; never reorder entries within a schema
// version.
var canonicalNames = []string{
	// Daily price action
	"price_change_pct",
	"open_gap_pct",
	"high_low_range_pct",
	"close_position",
	"return_1d_pct",
	"return_5d_pct",
	"return_10d_pct",
	"return_20d_pct",

	// Moving averages
	"ma5_ratio",
	"ma10_ratio",
	"ma20_ratio",
	"ma60_ratio",
	"ma5_slope_pct",
	"ma20_slope_pct",
	"ma_alignment",
	"price_above_ma20",

	// Momentum and oscillators
	"rsi_14",
	"rsi_trend",
	"williams_r_14",
	"momentum_10_pct",
	"roc_20_pct",
	"macd_hist",

	// Volatility
	"volatility_20_pct",
	"atr_14_ratio",
	"bb_position",
	"bb_width_pct",

	// Volume
	"volume_ratio_5",
	"volume_ratio_20",
	"volume_trend",
	"obv_direction",
	"turnover_value_log",
	"volume_spike",

	// Fundamentals
	"pe_ratio",
	"pb_ratio",
	"dividend_yield_pct",
	"eps_growth_pct",
	"revenue_growth_pct",
	"roe_pct",
	"gross_margin_pct",
	"debt_ratio",

	// Institutional chip flow
	"foreign_net_ratio",
	"trust_net_ratio",
	"dealer_net_ratio",
	"inst_net_total_ratio",
	"foreign_streak",
	"inst_buy_flag",

	// Market context
	"market_return_pct",
	"market_rsi",
	"market_volume_ratio",
	"sector_strength",
	"relative_strength_5",

	// Long-range position
	"price_vs_52w_high",
	"price_vs_52w_low",
	"up_days_ratio_10",

	// External signal
	"ai_score",
}

// neutralDefaults documents the value substituted when a feature cannot be
// computed from the available data. Bounded oscillators default to their
// midpoint, ratios to 1, percentages and flags to 0.
var neutralDefaults = map[string]float64{
	"close_position":      0.5,
	"ma5_ratio":           1,
	"ma10_ratio":          1,
	"ma20_ratio":          1,
	"ma60_ratio":          1,
	"rsi_14":              50,
	"williams_r_14":       -50,
	"bb_position":         0.5,
	"volume_ratio_5":      1,
	"volume_ratio_20":     1,
	"market_rsi":          50,
	"market_volume_ratio": 1,
	"price_vs_52w_high":   1,
	"price_vs_52w_low":    1,
	"up_days_ratio_10":    0.5,
	"ai_score":            50,
}

// Names returns a copy of the canonical feature-name list, in order.
func Names() []string {
	out := make([]string, len(canonicalNames))
	copy(out, canonicalNames)
	return out
}

// Count is the fixed vector length for this schema version.
func Count() int {
	return len(canonicalNames)
}

// Default returns the documented neutral default for a feature name.
func Default(name string) float64 {
	return neutralDefaults[name]
}
