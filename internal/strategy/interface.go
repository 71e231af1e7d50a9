// Package strategy defines trading signal functions for the backtest engine.
package strategy

import "github.com/yourusername/stock-insight/internal/models"

// Action is the decision a strategy emits for one trading day.
type Action string

const (
	ActionBuy       Action = "buy"
	ActionSell      Action = "sell"
	ActionHold      Action = "hold"
	ActionHoldLong  Action = "hold_long"
	ActionHoldShort Action = "hold_short"
)

// Signal is a strategy decision with a human-readable justification.
type Signal struct {
	Action Action `json:"action"`
	Reason string `json:"reason"`
}

// Strategy decides an action from the price history up to and including the
// current day. Implementations must be pure: same history, same signal.
type Strategy interface {
	Name() string
	// MinBars is the shortest history the strategy can evaluate.
	MinBars() int
	Evaluate(history []models.DailyBar) Signal
}

func hold(reason string) Signal {
	return Signal{Action: ActionHold, Reason: reason}
}

// sma returns the simple moving average of the last period closes.
func sma(history []models.DailyBar, period int) (float64, bool) {
	if period <= 0 || len(history) < period {
		return 0, false
	}
	sum := 0.0
	for _, bar := range history[len(history)-period:] {
		sum += bar.Close
	}
	return sum / float64(period), true
}
