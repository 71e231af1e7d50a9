package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSIReversalDefaults(t *testing.T) {
	s := NewRSIReversal(0, 0, 0)
	assert.Equal(t, "rsi_reversal_14", s.Name())
	assert.Equal(t, 15, s.MinBars())

	// Inverted bands fall back to 30/70.
	inverted := NewRSIReversal(14, 80, 20)
	assert.Equal(t, 30.0, inverted.oversold)
	assert.Equal(t, 70.0, inverted.overbought)
}

// TestRSIReversalOverbought tests that a straight advance saturates RSI at 100
// and triggers a sell
func TestRSIReversalOverbought(t *testing.T) {
	s := NewRSIReversal(2, 30, 70)
	signal := s.Evaluate(barsFromCloses(1, 2, 3))
	assert.Equal(t, ActionSell, signal.Action)
}

func TestRSIReversalOversold(t *testing.T) {
	s := NewRSIReversal(2, 30, 70)
	signal := s.Evaluate(barsFromCloses(3, 2, 1))
	assert.Equal(t, ActionBuy, signal.Action)
}

func TestRSIReversalNeutralHolds(t *testing.T) {
	s := NewRSIReversal(2, 30, 70)
	// Mixed moves land RSI between the bands.
	signal := s.Evaluate(barsFromCloses(10, 11, 10.5))
	assert.Equal(t, ActionHold, signal.Action)
}

func TestRSIReversalShortHistoryHolds(t *testing.T) {
	s := NewRSIReversal(14, 30, 70)
	signal := s.Evaluate(barsFromCloses(10, 11))
	assert.Equal(t, ActionHold, signal.Action)
}

func TestWilderRSI(t *testing.T) {
	// All gains saturate at 100.
	value, ok := wilderRSI(barsFromCloses(1, 2, 3), 2)
	require.True(t, ok)
	assert.Equal(t, 100.0, value)

	// One gain and one equal loss after smoothing balance out to 50.
	value, ok = wilderRSI(barsFromCloses(10, 11, 12, 11), 2)
	require.True(t, ok)
	assert.InDelta(t, 50.0, value, 1e-9)

	_, ok = wilderRSI(barsFromCloses(10, 11), 2)
	assert.False(t, ok)
}
