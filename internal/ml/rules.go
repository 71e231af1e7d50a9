package ml

// RuleEngine scores a stock from simple technical and chip-flow signals when
// no trained model is available. Scores land in [0,100] around a neutral 50;
// signals at their neutral defaults contribute nothing, so the engine never
// fails on absent data.
type RuleEngine struct{}

// NewRuleEngine creates a rule engine.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// Accepted shorthand keys for callers passing raw signals.
var signalAliases = map[string]string{
	"rsi":       "rsi_14",
	"ai_score":  "ai_score",
	"volume":    "volume_ratio_5",
	"ma20":      "ma20_ratio",
	"inst_flow": "inst_net_total_ratio",
}

// Score computes the 0-100 rule score from whichever signals are present.
// Keys follow the canonical feature names; a few shorthand aliases are also
// accepted.
func (r *RuleEngine) Score(signals map[string]float64) float64 {
	get := func(name string) (float64, bool) {
		if v, ok := signals[name]; ok {
			return v, true
		}
		for alias, canonical := range signalAliases {
			if canonical == name {
				if v, ok := signals[alias]; ok {
					return v, true
				}
			}
		}
		return 0, false
	}

	score := 50.0

	// Oversold and overbought RSI extremes.
	if rsi, ok := get("rsi_14"); ok {
		if rsi < 30 {
			score += 15
		} else if rsi > 70 {
			score -= 15
		}
	}

	// Price relative to the 20-day moving average.
	if ratio, ok := get("ma20_ratio"); ok {
		if ratio > 1.02 {
			score += 8
		} else if ratio < 0.98 {
			score -= 8
		}
	}

	// Bullish or bearish moving-average ordering.
	if alignment, ok := get("ma_alignment"); ok {
		if alignment > 0.5 {
			score += 8
		} else if alignment < -0.5 {
			score -= 8
		}
	}

	// Reward confirmed position above MA20; a zero is indistinguishable
	// from the missing-data default, so it is never penalized.
	if above, ok := get("price_above_ma20"); ok && above > 0.5 {
		score += 4
	}

	// Unusual volume relative to the 5-day average.
	if ratio, ok := get("volume_ratio_5"); ok {
		if ratio > 2 {
			score += 5
		} else if ratio > 0 && ratio < 0.5 {
			score -= 5
		}
	}

	// Institutional net flow direction.
	if flow, ok := get("inst_net_total_ratio"); ok {
		if flow > 0.01 {
			score += 7
		} else if flow < -0.01 {
			score -= 7
		}
	}

	// External AI score, centered on its neutral 50.
	if ai, ok := get("ai_score"); ok {
		score += (clampFloat(ai, 0, 100) - 50) * 0.24
	}

	return clampFloat(score, 0, 100)
}

// Probability converts the rule score to a probability of an upward move.
func (r *RuleEngine) Probability(signals map[string]float64) float64 {
	return r.Score(signals) / 100
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
