package strategy

import (
	"fmt"

	"github.com/yourusername/stock-insight/internal/models"
)

// RSIReversal buys oversold conditions and sells overbought ones using a
// Wilder-smoothed RSI.
type RSIReversal struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIReversal creates an RSI mean-reversion strategy. Non-positive inputs
// fall back to the standard 14-period 30/70 bands.
func NewRSIReversal(period int, oversold, overbought float64) *RSIReversal {
	if period <= 0 {
		period = 14
	}
	if oversold <= 0 || overbought <= oversold {
		oversold, overbought = 30, 70
	}
	return &RSIReversal{period: period, oversold: oversold, overbought: overbought}
}

func (s *RSIReversal) Name() string {
	return fmt.Sprintf("rsi_reversal_%d", s.period)
}

func (s *RSIReversal) MinBars() int {
	return s.period + 1
}

func (s *RSIReversal) Evaluate(history []models.DailyBar) Signal {
	value, ok := wilderRSI(history, s.period)
	if !ok {
		return hold("not enough history for RSI")
	}

	switch {
	case value < s.oversold:
		return Signal{Action: ActionBuy, Reason: fmt.Sprintf("RSI %.1f below oversold threshold %.0f", value, s.oversold)}
	case value > s.overbought:
		return Signal{Action: ActionSell, Reason: fmt.Sprintf("RSI %.1f above overbought threshold %.0f", value, s.overbought)}
	default:
		return hold(fmt.Sprintf("RSI %.1f inside neutral band", value))
	}
}

// wilderRSI computes the Wilder-smoothed relative strength index over closes.
func wilderRSI(history []models.DailyBar, period int) (float64, bool) {
	if len(history) < period+1 {
		return 0, false
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		delta := history[i].Close - history[i-1].Close
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(history); i++ {
		delta := history[i].Close - history[i-1].Close
		up, down := 0.0, 0.0
		if delta > 0 {
			up = delta
		} else {
			down = -delta
		}
		avgGain = (avgGain*float64(period-1) + up) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + down) / float64(period)
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
