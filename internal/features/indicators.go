package features

import "math"

// Rolling-window helpers used by the extractor. All functions expect series
// ordered oldest to newest and return (value, ok); ok is false when the
// window cannot be filled.

func sma(values []float64, period int) (float64, bool) {
	if len(values) < period || period <= 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

func stddev(values []float64, period int) (float64, bool) {
	mean, ok := sma(values, period)
	if !ok {
		return 0, false
	}
	variance := 0.0
	for _, v := range values[len(values)-period:] {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(period)
	return math.Sqrt(variance), true
}

// rsi computes Wilder's RSI over the trailing period.
func rsi(closes []float64, period int) (float64, bool) {
	if len(closes) < period+1 {
		return 0, false
	}
	gains := 0.0
	losses := 0.0
	window := closes[len(closes)-period-1:]
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	if gains+losses == 0 {
		return 50, true
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// williamsR computes Williams %R over the trailing period, in [-100, 0].
func williamsR(highs, lows, closes []float64, period int) (float64, bool) {
	if len(closes) < period {
		return 0, false
	}
	highest := math.Inf(-1)
	lowest := math.Inf(1)
	for i := len(closes) - period; i < len(closes); i++ {
		if highs[i] > highest {
			highest = highs[i]
		}
		if lows[i] < lowest {
			lowest = lows[i]
		}
	}
	if highest == lowest {
		return -50, true
	}
	last := closes[len(closes)-1]
	return (highest - last) / (highest - lowest) * -100, true
}

// atr computes the average true range over the trailing period.
func atr(highs, lows, closes []float64, period int) (float64, bool) {
	if len(closes) < period+1 {
		return 0, false
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		tr := highs[i] - lows[i]
		if hc := math.Abs(highs[i] - closes[i-1]); hc > tr {
			tr = hc
		}
		if lc := math.Abs(lows[i] - closes[i-1]); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period), true
}

func ema(values []float64, period int) (float64, bool) {
	if len(values) < period {
		return 0, false
	}
	k := 2.0 / float64(period+1)
	avg, _ := sma(values[:period], period)
	for _, v := range values[period:] {
		avg = v*k + avg*(1-k)
	}
	return avg, true
}

// macdHistogram returns MACD(12,26) minus its 9-period signal line. The
// signal is approximated by an EMA over the trailing MACD series.
func macdHistogram(closes []float64) (float64, bool) {
	const slow, fast, signal = 26, 12, 9
	if len(closes) < slow+signal {
		return 0, false
	}
	macdSeries := make([]float64, 0, signal)
	for i := len(closes) - signal; i <= len(closes); i++ {
		fastEMA, ok1 := ema(closes[:i], fast)
		slowEMA, ok2 := ema(closes[:i], slow)
		if !ok1 || !ok2 {
			return 0, false
		}
		macdSeries = append(macdSeries, fastEMA-slowEMA)
	}
	sig, ok := ema(macdSeries, signal)
	if !ok {
		return 0, false
	}
	return macdSeries[len(macdSeries)-1] - sig, true
}

// obvDirection reports the sign of on-balance-volume change over the trailing
// window: +1 accumulating, -1 distributing, 0 flat.
func obvDirection(closes, volumes []float64, period int) (float64, bool) {
	if len(closes) < period+1 {
		return 0, false
	}
	obv := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			obv += volumes[i]
		case closes[i] < closes[i-1]:
			obv -= volumes[i]
		}
	}
	switch {
	case obv > 0:
		return 1, true
	case obv < 0:
		return -1, true
	default:
		return 0, true
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
