package features

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/models"
)

// Extractor builds fixed-schema feature vectors from daily stock
// observations. It never fails on partial data: every feature it cannot
// compute takes its documented neutral default and is counted as missing.
type Extractor struct {
	logger *logrus.Logger
}

// NewExtractor creates a feature extractor.
func NewExtractor(logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Extractor{logger: logger}
}

// vectorBuilder accumulates features, tracking which came from real data.
type vectorBuilder struct {
	values  map[string]float64
	missing int
}

func (b *vectorBuilder) set(name string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		b.miss(name)
		return
	}
	b.values[name] = value
}

func (b *vectorBuilder) miss(name string) {
	b.values[name] = Default(name)
	b.missing++
}

func (b *vectorBuilder) setOrMiss(name string, value float64, ok bool) {
	if ok {
		b.set(name, value)
		return
	}
	b.miss(name)
}

// Extract converts one observation (plus an optional lookback window of prior
// bars, oldest to newest) into a FeatureVector. It returns an error only for
// a nil observation.
func (e *Extractor) Extract(obs *models.StockObservation, history []models.DailyBar) (*models.FeatureVector, error) {
	if obs == nil {
		return nil, fmt.Errorf("observation is required")
	}

	b := &vectorBuilder{values: make(map[string]float64, Count())}

	closes, highs, lows, volumes := flattenSeries(obs, history)
	hasBar := obs.Bar.Close > 0

	e.priceFeatures(b, obs, closes, hasBar)
	e.movingAverageFeatures(b, closes, hasBar)
	e.momentumFeatures(b, closes, highs, lows, hasBar)
	e.volatilityFeatures(b, closes, highs, lows, hasBar)
	e.volumeFeatures(b, obs, closes, volumes, hasBar)
	e.fundamentalFeatures(b, obs.Fundamentals)
	e.chipFlowFeatures(b, obs)
	e.marketFeatures(b, obs, closes)
	e.longRangeFeatures(b, closes, hasBar)

	if obs.AIScore != nil {
		b.set("ai_score", clip(*obs.AIScore, 0, 100))
	} else {
		b.miss("ai_score")
	}

	vec := &models.FeatureVector{
		StockID:       obs.StockID,
		AsOfDate:      obs.Date,
		SchemaVersion: SchemaVersion,
		Values:        b.values,
		FeatureCount:  Count(),
		MissingCount:  b.missing,
	}

	if b.missing > 0 {
		e.logger.WithFields(logrus.Fields{
			"stock_id": obs.StockID,
			"missing":  b.missing,
			"total":    Count(),
		}).Debug("Feature extraction completed with defaults")
	}
	return vec, nil
}

// flattenSeries appends today's bar to the lookback window so rolling
// computations include the observation day. Bars without a close are skipped.
func flattenSeries(obs *models.StockObservation, history []models.DailyBar) (closes, highs, lows, volumes []float64) {
	bars := make([]models.DailyBar, 0, len(history)+1)
	for _, bar := range history {
		if bar.Close > 0 {
			bars = append(bars, bar)
		}
	}
	if obs.Bar.Close > 0 {
		bars = append(bars, obs.Bar)
	}
	closes = make([]float64, len(bars))
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	volumes = make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
		volumes[i] = bar.Volume
	}
	return closes, highs, lows, volumes
}

func (e *Extractor) priceFeatures(b *vectorBuilder, obs *models.StockObservation, closes []float64, hasBar bool) {
	bar := obs.Bar
	prevClose := 0.0
	if len(closes) >= 2 {
		prevClose = closes[len(closes)-2]
	}

	if hasBar && prevClose > 0 {
		b.set("price_change_pct", (bar.Close-prevClose)/prevClose*100)
		b.set("return_1d_pct", (bar.Close-prevClose)/prevClose*100)
	} else {
		b.miss("price_change_pct")
		b.miss("return_1d_pct")
	}

	if hasBar && bar.Open > 0 && prevClose > 0 {
		b.set("open_gap_pct", (bar.Open-prevClose)/prevClose*100)
	} else {
		b.miss("open_gap_pct")
	}

	if hasBar && bar.High > 0 && bar.Low > 0 {
		b.set("high_low_range_pct", (bar.High-bar.Low)/bar.Close*100)
		if bar.High > bar.Low {
			b.set("close_position", clip((bar.Close-bar.Low)/(bar.High-bar.Low), 0, 1))
		} else {
			b.set("close_position", 0.5)
		}
	} else {
		b.miss("high_low_range_pct")
		b.miss("close_position")
	}

	for _, spec := range []struct {
		name string
		days int
	}{
		{"return_5d_pct", 5},
		{"return_10d_pct", 10},
		{"return_20d_pct", 20},
	} {
		if len(closes) > spec.days && closes[len(closes)-1-spec.days] > 0 {
			base := closes[len(closes)-1-spec.days]
			b.set(spec.name, (closes[len(closes)-1]-base)/base*100)
		} else {
			b.miss(spec.name)
		}
	}
}

func (e *Extractor) movingAverageFeatures(b *vectorBuilder, closes []float64, hasBar bool) {
	last := 0.0
	if len(closes) > 0 {
		last = closes[len(closes)-1]
	}

	mas := make(map[int]float64, 4)
	for _, spec := range []struct {
		name   string
		period int
	}{
		{"ma5_ratio", 5},
		{"ma10_ratio", 10},
		{"ma20_ratio", 20},
		{"ma60_ratio", 60},
	} {
		ma, ok := sma(closes, spec.period)
		if hasBar && ok && ma > 0 {
			mas[spec.period] = ma
			b.set(spec.name, last/ma)
		} else {
			b.miss(spec.name)
		}
	}

	for _, spec := range []struct {
		name   string
		period int
	}{
		{"ma5_slope_pct", 5},
		{"ma20_slope_pct", 20},
	} {
		// Slope measured against the same MA five sessions earlier.
		if len(closes) >= spec.period+5 {
			now, ok1 := sma(closes, spec.period)
			then, ok2 := sma(closes[:len(closes)-5], spec.period)
			if ok1 && ok2 && then > 0 {
				b.set(spec.name, (now-then)/then*100)
				continue
			}
		}
		b.miss(spec.name)
	}

	ma5, ok5 := mas[5]
	ma20, ok20 := mas[20]
	ma60, ok60 := mas[60]
	if ok5 && ok20 && ok60 {
		switch {
		case ma5 > ma20 && ma20 > ma60:
			b.set("ma_alignment", 1)
		case ma5 < ma20 && ma20 < ma60:
			b.set("ma_alignment", -1)
		default:
			b.set("ma_alignment", 0)
		}
	} else {
		b.miss("ma_alignment")
	}

	if ok20 {
		if last > ma20 {
			b.set("price_above_ma20", 1)
		} else {
			b.set("price_above_ma20", 0)
		}
	} else {
		b.miss("price_above_ma20")
	}
}

func (e *Extractor) momentumFeatures(b *vectorBuilder, closes, highs, lows []float64, hasBar bool) {
	if !hasBar {
		b.miss("rsi_14")
		b.miss("rsi_trend")
		b.miss("williams_r_14")
		b.miss("momentum_10_pct")
		b.miss("roc_20_pct")
		b.miss("macd_hist")
		return
	}

	rsiNow, okNow := rsi(closes, 14)
	b.setOrMiss("rsi_14", clip(rsiNow, 0, 100), okNow)

	rsiPrev, okPrev := rsi(closes[:max(len(closes)-3, 0)], 14)
	if okNow && okPrev {
		b.set("rsi_trend", rsiNow-rsiPrev)
	} else {
		b.miss("rsi_trend")
	}

	wr, ok := williamsR(highs, lows, closes, 14)
	b.setOrMiss("williams_r_14", clip(wr, -100, 0), ok)

	if len(closes) > 10 && closes[len(closes)-11] > 0 {
		base := closes[len(closes)-11]
		b.set("momentum_10_pct", (closes[len(closes)-1]-base)/base*100)
	} else {
		b.miss("momentum_10_pct")
	}

	if len(closes) > 20 && closes[len(closes)-21] > 0 {
		base := closes[len(closes)-21]
		b.set("roc_20_pct", (closes[len(closes)-1]-base)/base*100)
	} else {
		b.miss("roc_20_pct")
	}

	hist, ok := macdHistogram(closes)
	b.setOrMiss("macd_hist", hist, ok)
}

func (e *Extractor) volatilityFeatures(b *vectorBuilder, closes, highs, lows []float64, hasBar bool) {
	if !hasBar {
		b.miss("volatility_20_pct")
		b.miss("atr_14_ratio")
		b.miss("bb_position")
		b.miss("bb_width_pct")
		return
	}
	last := closes[len(closes)-1]

	if len(closes) >= 21 {
		returns := make([]float64, 0, 20)
		for i := len(closes) - 20; i < len(closes); i++ {
			if closes[i-1] > 0 {
				returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
			}
		}
		if std, ok := stddev(returns, len(returns)); ok && len(returns) == 20 {
			b.set("volatility_20_pct", std*100)
		} else {
			b.miss("volatility_20_pct")
		}
	} else {
		b.miss("volatility_20_pct")
	}

	if rangeAvg, ok := atr(highs, lows, closes, 14); ok && last > 0 {
		b.set("atr_14_ratio", rangeAvg/last)
	} else {
		b.miss("atr_14_ratio")
	}

	mid, okMid := sma(closes, 20)
	std, okStd := stddev(closes, 20)
	if okMid && okStd && std > 0 {
		upper := mid + 2*std
		lower := mid - 2*std
		b.set("bb_position", clip((last-lower)/(upper-lower), 0, 1))
		if mid > 0 {
			b.set("bb_width_pct", (upper-lower)/mid*100)
		} else {
			b.miss("bb_width_pct")
		}
	} else {
		b.miss("bb_position")
		b.miss("bb_width_pct")
	}
}

func (e *Extractor) volumeFeatures(b *vectorBuilder, obs *models.StockObservation, closes, volumes []float64, hasBar bool) {
	vol := obs.Bar.Volume

	for _, spec := range []struct {
		name   string
		period int
	}{
		{"volume_ratio_5", 5},
		{"volume_ratio_20", 20},
	} {
		if avg, ok := sma(volumes, spec.period); hasBar && ok && avg > 0 && vol > 0 {
			b.set(spec.name, vol/avg)
		} else {
			b.miss(spec.name)
		}
	}

	avg5, ok5 := sma(volumes, 5)
	avg20, ok20 := sma(volumes, 20)
	if ok5 && ok20 && avg20 > 0 {
		b.set("volume_trend", avg5/avg20-1)
	} else {
		b.miss("volume_trend")
	}

	dir, ok := obvDirection(closes, volumes, 10)
	b.setOrMiss("obv_direction", dir, ok)

	if hasBar && vol > 0 {
		b.set("turnover_value_log", math.Log10(vol*obs.Bar.Close+1))
	} else {
		b.miss("turnover_value_log")
	}

	if avg, ok := sma(volumes, 20); hasBar && ok && avg > 0 && vol > 0 {
		if vol > avg*2 {
			b.set("volume_spike", 1)
		} else {
			b.set("volume_spike", 0)
		}
	} else {
		b.miss("volume_spike")
	}
}

func (e *Extractor) fundamentalFeatures(b *vectorBuilder, f *models.Fundamentals) {
	if f == nil {
		for _, name := range []string{
			"pe_ratio", "pb_ratio", "dividend_yield_pct", "eps_growth_pct",
			"revenue_growth_pct", "roe_pct", "gross_margin_pct", "debt_ratio",
		} {
			b.miss(name)
		}
		return
	}
	b.set("pe_ratio", clip(f.PERatio, 0, 200))
	b.set("pb_ratio", clip(f.PBRatio, 0, 50))
	b.set("dividend_yield_pct", f.DividendYield*100)
	b.set("eps_growth_pct", f.EPSGrowth*100)
	b.set("revenue_growth_pct", f.RevenueGrowth*100)
	b.set("roe_pct", f.ROE*100)
	b.set("gross_margin_pct", f.GrossMargin*100)
	b.set("debt_ratio", clip(f.DebtRatio, 0, 1))
}

func (e *Extractor) chipFlowFeatures(b *vectorBuilder, obs *models.StockObservation) {
	flow := obs.Flow
	vol := obs.Bar.Volume
	if flow == nil || vol <= 0 {
		for _, name := range []string{
			"foreign_net_ratio", "trust_net_ratio", "dealer_net_ratio",
			"inst_net_total_ratio", "foreign_streak", "inst_buy_flag",
		} {
			b.miss(name)
		}
		return
	}
	b.set("foreign_net_ratio", flow.ForeignNet/vol)
	b.set("trust_net_ratio", flow.TrustNet/vol)
	b.set("dealer_net_ratio", flow.DealerNet/vol)
	total := flow.ForeignNet + flow.TrustNet + flow.DealerNet
	b.set("inst_net_total_ratio", total/vol)
	b.set("foreign_streak", float64(flow.ForeignStreak))
	if total > 0 {
		b.set("inst_buy_flag", 1)
	} else {
		b.set("inst_buy_flag", 0)
	}
}

func (e *Extractor) marketFeatures(b *vectorBuilder, obs *models.StockObservation, closes []float64) {
	m := obs.Market
	if m == nil {
		for _, name := range []string{
			"market_return_pct", "market_rsi", "market_volume_ratio",
			"sector_strength", "relative_strength_5",
		} {
			b.miss(name)
		}
		return
	}
	b.set("market_return_pct", m.MarketReturn*100)
	b.set("market_rsi", clip(m.MarketRSI, 0, 100))
	b.set("market_volume_ratio", m.MarketVolumeRatio)
	b.set("sector_strength", m.SectorStrength)

	if len(closes) > 5 && closes[len(closes)-6] > 0 {
		base := closes[len(closes)-6]
		stockReturn := (closes[len(closes)-1] - base) / base * 100
		b.set("relative_strength_5", stockReturn-m.MarketReturn*100)
	} else {
		b.miss("relative_strength_5")
	}
}

func (e *Extractor) longRangeFeatures(b *vectorBuilder, closes []float64, hasBar bool) {
	// 52-week position needs roughly a year of trading days.
	const yearWindow = 240
	if hasBar && len(closes) >= yearWindow {
		window := closes[len(closes)-yearWindow:]
		high := window[0]
		low := window[0]
		for _, c := range window {
			if c > high {
				high = c
			}
			if c < low {
				low = c
			}
		}
		last := closes[len(closes)-1]
		if high > 0 {
			b.set("price_vs_52w_high", last/high)
		} else {
			b.miss("price_vs_52w_high")
		}
		if low > 0 {
			b.set("price_vs_52w_low", last/low)
		} else {
			b.miss("price_vs_52w_low")
		}
	} else {
		b.miss("price_vs_52w_high")
		b.miss("price_vs_52w_low")
	}

	if len(closes) >= 11 {
		ups := 0
		for i := len(closes) - 10; i < len(closes); i++ {
			if closes[i] > closes[i-1] {
				ups++
			}
		}
		b.set("up_days_ratio_10", float64(ups)/10)
	} else {
		b.miss("up_days_ratio_10")
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
