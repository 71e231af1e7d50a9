package ml

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/yourusername/stock-insight/internal/models"
)

// PredictionCache memoizes prediction results per stock, day and model
// version. Entries expire on a short TTL so an activated version takes over
// quickly even for hot stocks, and the entry count is bounded.
type PredictionCache struct {
	cache   *gocache.Cache
	maxSize int
}

// NewPredictionCache creates a cache with the given TTL. maxSize bounds how
// many entries are held at once; zero or negative means unbounded.
func NewPredictionCache(ttl time.Duration, maxSize int) *PredictionCache {
	return &PredictionCache{
		cache:   gocache.New(ttl, 2*ttl),
		maxSize: maxSize,
	}
}

func predictionKey(stockID string, date time.Time, modelVersion string) string {
	return fmt.Sprintf("%s|%s|%s", stockID, date.UTC().Format("2006-01-02"), modelVersion)
}

// Get returns the cached result for the key, if present and fresh.
func (c *PredictionCache) Get(stockID string, date time.Time, modelVersion string) (*models.PredictionResult, bool) {
	if c == nil {
		return nil, false
	}
	if v, ok := c.cache.Get(predictionKey(stockID, date, modelVersion)); ok {
		return v.(*models.PredictionResult), true
	}
	return nil, false
}

// Set stores a result under its stock, day and model version. Hitting the
// size bound drops the whole cache; entries are cheap to recompute and the
// underlying store keeps no eviction order.
func (c *PredictionCache) Set(stockID string, date time.Time, modelVersion string, result *models.PredictionResult) {
	if c == nil {
		return
	}
	if c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.cache.Flush()
	}
	c.cache.SetDefault(predictionKey(stockID, date, modelVersion), result)
}

// Flush drops all cached predictions.
func (c *PredictionCache) Flush() {
	if c != nil {
		c.cache.Flush()
	}
}
