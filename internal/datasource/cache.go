package datasource

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/yourusername/stock-insight/internal/models"
)

// taipei is the exchange's local time zone. Falls back to a fixed UTC+8
// offset if the tz database is unavailable.
var taipei = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}()

// BarCache memoizes provider responses with a trading-hours-aware TTL:
// entries written while the market is open expire quickly, entries written
// after the close last much longer since the data cannot change until the
// next session.
type BarCache struct {
	cache     *gocache.Cache
	openTTL   time.Duration
	closedTTL time.Duration
	now       func() time.Time
}

// NewBarCache creates a cache. now may be nil to use the wall clock; tests
// inject a fixed clock.
func NewBarCache(openTTL, closedTTL time.Duration, now func() time.Time) *BarCache {
	if now == nil {
		now = time.Now
	}
	return &BarCache{
		cache:     gocache.New(gocache.NoExpiration, 10*time.Minute),
		openTTL:   openTTL,
		closedTTL: closedTTL,
		now:       now,
	}
}

func barKey(source, stockID string, month time.Time) string {
	return fmt.Sprintf("%s|%s|%s", source, stockID, month.Format("2006-01"))
}

// Get returns cached bars for the key, if fresh.
func (c *BarCache) Get(source, stockID string, month time.Time) ([]models.DailyBar, bool) {
	if c == nil {
		return nil, false
	}
	if v, ok := c.cache.Get(barKey(source, stockID, month)); ok {
		return v.([]models.DailyBar), true
	}
	return nil, false
}

// Set stores bars with a TTL chosen by whether the market is open now.
func (c *BarCache) Set(source, stockID string, month time.Time, bars []models.DailyBar) {
	if c == nil {
		return
	}
	ttl := c.closedTTL
	if c.MarketOpen() {
		ttl = c.openTTL
	}
	c.cache.Set(barKey(source, stockID, month), bars, ttl)
}

// MarketOpen reports whether the exchange is in its trading session,
// weekdays 09:00 to 13:30 local time.
func (c *BarCache) MarketOpen() bool {
	now := c.now().In(taipei)
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= 9*60 && minutes <= 13*60+30
}

// Flush drops all cached entries.
func (c *BarCache) Flush() {
	if c != nil {
		c.cache.Flush()
	}
}
