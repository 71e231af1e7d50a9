package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/stock-insight/internal/models"
)

func barsFromCloses(closes ...float64) []models.DailyBar {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	bars := make([]models.DailyBar, len(closes))
	for i, c := range closes {
		bars[i] = models.DailyBar{
			StockID: "2330",
			Date:    base.AddDate(0, 0, i),
			Open:    c, High: c, Low: c, Close: c,
			Volume: 1_000_000,
		}
	}
	return bars
}

func TestMACrossDefaults(t *testing.T) {
	s := NewMACross(0, 0)
	assert.Equal(t, "ma_cross_5_20", s.Name())
	assert.Equal(t, 21, s.MinBars())

	// An inverted pair is rejected the same way.
	assert.Equal(t, "ma_cross_5_20", NewMACross(20, 5).Name())
}

// TestMACrossGoldenCross tests the buy signal on the day the fast average
// first closes above the slow one
func TestMACrossGoldenCross(t *testing.T) {
	s := NewMACross(2, 3)
	signal := s.Evaluate(barsFromCloses(10, 9, 8, 12))
	assert.Equal(t, ActionBuy, signal.Action)
	assert.NotEmpty(t, signal.Reason)
}

func TestMACrossDeathCross(t *testing.T) {
	s := NewMACross(2, 3)
	signal := s.Evaluate(barsFromCloses(10, 11, 12, 8))
	assert.Equal(t, ActionSell, signal.Action)
}

// TestMACrossTrendHolds tests that an established trend reports its side
// without re-signalling
func TestMACrossTrendHolds(t *testing.T) {
	s := NewMACross(2, 3)

	up := s.Evaluate(barsFromCloses(10, 11, 12, 13))
	assert.Equal(t, ActionHoldLong, up.Action)

	down := s.Evaluate(barsFromCloses(13, 12, 11, 10))
	assert.Equal(t, ActionHoldShort, down.Action)
}

func TestMACrossShortHistoryHolds(t *testing.T) {
	s := NewMACross(2, 3)
	signal := s.Evaluate(barsFromCloses(10, 11, 12))
	assert.Equal(t, ActionHold, signal.Action)
}

func TestSMA(t *testing.T) {
	bars := barsFromCloses(1, 2, 3, 4)

	avg, ok := sma(bars, 2)
	assert.True(t, ok)
	assert.Equal(t, 3.5, avg)

	_, ok = sma(bars, 5)
	assert.False(t, ok)
	_, ok = sma(bars, 0)
	assert.False(t, ok)
}
