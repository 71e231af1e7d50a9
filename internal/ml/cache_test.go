package ml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/stock-insight/internal/models"
)

func TestPredictionCacheRoundTrip(t *testing.T) {
	cache := NewPredictionCache(time.Minute, 0)
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	_, ok := cache.Get("2330", date, "v1")
	assert.False(t, ok)

	result := &models.PredictionResult{StockID: "2330", Prediction: models.PredictionUp, Probability: 0.7}
	cache.Set("2330", date, "v1", result)

	got, ok := cache.Get("2330", date, "v1")
	assert.True(t, ok)
	assert.Equal(t, result, got)
}

// TestPredictionCacheKeyedByVersion tests that a model rollover misses stale
// entries
func TestPredictionCacheKeyedByVersion(t *testing.T) {
	cache := NewPredictionCache(time.Minute, 0)
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	cache.Set("2330", date, "v1", &models.PredictionResult{Probability: 0.7})

	_, ok := cache.Get("2330", date, "v2")
	assert.False(t, ok)
	_, ok = cache.Get("2317", date, "v1")
	assert.False(t, ok)
}

// TestPredictionCacheMaxSize tests that the entry count never exceeds the
// configured bound
func TestPredictionCacheMaxSize(t *testing.T) {
	cache := NewPredictionCache(time.Minute, 2)
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	cache.Set("2330", date, "v1", &models.PredictionResult{Probability: 0.7})
	cache.Set("2317", date, "v1", &models.PredictionResult{Probability: 0.6})
	cache.Set("2454", date, "v1", &models.PredictionResult{Probability: 0.55})

	// The third insert hit the bound, dropping the earlier entries.
	_, ok := cache.Get("2330", date, "v1")
	assert.False(t, ok)
	_, ok = cache.Get("2317", date, "v1")
	assert.False(t, ok)
	got, ok := cache.Get("2454", date, "v1")
	assert.True(t, ok)
	assert.InDelta(t, 0.55, got.Probability, 1e-9)
}

func TestPredictionCacheNilReceiver(t *testing.T) {
	var cache *PredictionCache

	_, ok := cache.Get("2330", time.Now(), "v1")
	assert.False(t, ok)
	// Set and Flush on a nil cache must not panic.
	cache.Set("2330", time.Now(), "v1", &models.PredictionResult{})
	cache.Flush()
}

func TestPredictionCacheFlush(t *testing.T) {
	cache := NewPredictionCache(time.Minute, 0)
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	cache.Set("2330", date, "v1", &models.PredictionResult{Probability: 0.7})
	cache.Flush()

	_, ok := cache.Get("2330", date, "v1")
	assert.False(t, ok)
}
