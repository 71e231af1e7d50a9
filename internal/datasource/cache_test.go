package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/stock-insight/internal/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBarCacheRoundTrip(t *testing.T) {
	cache := NewBarCache(5*time.Minute, time.Hour, nil)
	month := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []models.DailyBar{{StockID: "2330", Close: 100}}

	_, ok := cache.Get("twse", "2330", month)
	assert.False(t, ok)

	cache.Set("twse", "2330", month, bars)
	got, ok := cache.Get("twse", "2330", month)
	require.True(t, ok)
	assert.Equal(t, bars, got)

	// Keys are scoped by source, stock and month.
	_, ok = cache.Get("other", "2330", month)
	assert.False(t, ok)
	_, ok = cache.Get("twse", "2317", month)
	assert.False(t, ok)
	_, ok = cache.Get("twse", "2330", month.AddDate(0, 1, 0))
	assert.False(t, ok)
}

func TestBarCacheNilSafe(t *testing.T) {
	var cache *BarCache
	month := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, ok := cache.Get("twse", "2330", month)
	assert.False(t, ok)
	cache.Set("twse", "2330", month, nil)
	cache.Flush()
}

func TestBarCacheFlush(t *testing.T) {
	cache := NewBarCache(5*time.Minute, time.Hour, nil)
	month := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.Set("twse", "2330", month, []models.DailyBar{{StockID: "2330"}})

	cache.Flush()
	_, ok := cache.Get("twse", "2330", month)
	assert.False(t, ok)
}

func TestMarketOpen(t *testing.T) {
	// 2025-01-06 is a Monday.
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"weekday mid session", time.Date(2025, 1, 6, 10, 0, 0, 0, taipei), true},
		{"weekday at open", time.Date(2025, 1, 6, 9, 0, 0, 0, taipei), true},
		{"weekday at close", time.Date(2025, 1, 6, 13, 30, 0, 0, taipei), true},
		{"weekday before open", time.Date(2025, 1, 6, 8, 59, 0, 0, taipei), false},
		{"weekday after close", time.Date(2025, 1, 6, 14, 0, 0, 0, taipei), false},
		{"saturday", time.Date(2025, 1, 4, 10, 0, 0, 0, taipei), false},
		{"sunday", time.Date(2025, 1, 5, 10, 0, 0, 0, taipei), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := NewBarCache(5*time.Minute, time.Hour, fixedClock(tc.at))
			assert.Equal(t, tc.want, cache.MarketOpen())
		})
	}
}
