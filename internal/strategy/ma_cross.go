package strategy

import (
	"fmt"

	"github.com/yourusername/stock-insight/internal/models"
)

// MACross signals on the fast moving average crossing the slow one: a cross
// above buys, a cross below sells, and between crosses it reports which side
// of the slow average the trend is on.
type MACross struct {
	fast int
	slow int
}

// NewMACross creates a moving-average crossover strategy. Non-positive
// periods fall back to the classic 5/20 pair.
func NewMACross(fast, slow int) *MACross {
	if fast <= 0 || slow <= fast {
		fast, slow = 5, 20
	}
	return &MACross{fast: fast, slow: slow}
}

func (s *MACross) Name() string {
	return fmt.Sprintf("ma_cross_%d_%d", s.fast, s.slow)
}

// MinBars needs one extra bar to compare today's averages with yesterday's.
func (s *MACross) MinBars() int {
	return s.slow + 1
}

func (s *MACross) Evaluate(history []models.DailyBar) Signal {
	fastNow, ok1 := sma(history, s.fast)
	slowNow, ok2 := sma(history, s.slow)
	fastPrev, ok3 := sma(history[:len(history)-1], s.fast)
	slowPrev, ok4 := sma(history[:len(history)-1], s.slow)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return hold("not enough history for moving averages")
	}

	switch {
	case fastPrev <= slowPrev && fastNow > slowNow:
		return Signal{
			Action: ActionBuy,
			Reason: fmt.Sprintf("MA%d crossed above MA%d (%.2f > %.2f)", s.fast, s.slow, fastNow, slowNow),
		}
	case fastPrev >= slowPrev && fastNow < slowNow:
		return Signal{
			Action: ActionSell,
			Reason: fmt.Sprintf("MA%d crossed below MA%d (%.2f < %.2f)", s.fast, s.slow, fastNow, slowNow),
		}
	case fastNow > slowNow:
		return Signal{Action: ActionHoldLong, Reason: "fast average above slow average"}
	default:
		return Signal{Action: ActionHoldShort, Reason: "fast average below slow average"}
	}
}
