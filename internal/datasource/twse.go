package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insight/internal/config"
	"github.com/yourusername/stock-insight/internal/models"
)

const twseSourceName = "twse"

// TWSESource fetches daily bars from the Taiwan Stock Exchange's public
// STOCK_DAY endpoint, one calendar month per request.
type TWSESource struct {
	client  *RateLimitedHTTPClient
	baseURL string
	cache   *BarCache
	logger  *logrus.Logger
}

// NewTWSESource creates a TWSE daily-bar source. cache may be nil to fetch
// uncached.
func NewTWSESource(cfg config.ProviderConfig, cache *BarCache, logger *logrus.Logger) *TWSESource {
	if logger == nil {
		logger = logrus.New()
	}
	httpCfg := DefaultHTTPClientConfig()
	if cfg.TimeoutSeconds > 0 {
		httpCfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.RateLimit > 0 {
		httpCfg.RateLimit = cfg.RateLimit
	}
	if cfg.MaxRetries > 0 {
		httpCfg.MaxRetries = cfg.MaxRetries
	}

	return &TWSESource{
		client:  NewRateLimitedHTTPClient(httpCfg, logger),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cache:   cache,
		logger:  logger,
	}
}

func (s *TWSESource) Name() string {
	return twseSourceName
}

// stockDayResponse is the raw STOCK_DAY payload. Data rows are
// [date, volume, value, open, high, low, close, change, transactions] with
// ROC-calendar dates and comma-grouped numbers.
type stockDayResponse struct {
	Stat string     `json:"stat"`
	Data [][]string `json:"data"`
}

// FetchDailyBars returns the month's bars for a stock, oldest first.
func (s *TWSESource) FetchDailyBars(ctx context.Context, stockID string, month time.Time) ([]models.DailyBar, error) {
	if bars, ok := s.cache.Get(twseSourceName, stockID, month); ok {
		return bars, nil
	}

	url := fmt.Sprintf("%s/exchangeReport/STOCK_DAY?response=json&date=%s01&stockNo=%s",
		s.baseURL, month.Format("200601"), stockID)

	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, &SourceError{Source: twseSourceName, Code: ErrCodeNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, &SourceError{Source: twseSourceName, Code: ErrCodeServer,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SourceError{Source: twseSourceName, Code: ErrCodeNetwork, Message: "read failed", Err: err}
	}

	var payload stockDayResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &SourceError{Source: twseSourceName, Code: ErrCodeInvalidData, Message: "malformed response", Err: err}
	}
	if payload.Stat != "OK" {
		return nil, &SourceError{Source: twseSourceName, Code: ErrCodeNotFound,
			Message: fmt.Sprintf("no data for %s in %s", stockID, month.Format("2006-01"))}
	}

	bars := make([]models.DailyBar, 0, len(payload.Data))
	for _, row := range payload.Data {
		bar, err := parseStockDayRow(stockID, row)
		if err != nil {
			s.logger.WithError(err).WithField("stock_id", stockID).
				Debug("Skipping unparsable trading day row")
			continue
		}
		bars = append(bars, bar)
	}

	s.cache.Set(twseSourceName, stockID, month, bars)
	s.logger.WithFields(logrus.Fields{
		"stock_id": stockID,
		"month":    month.Format("2006-01"),
		"bars":     len(bars),
	}).Debug("Fetched daily bars")
	return bars, nil
}

func parseStockDayRow(stockID string, row []string) (models.DailyBar, error) {
	if len(row) < 7 {
		return models.DailyBar{}, fmt.Errorf("row has %d fields, need 7", len(row))
	}

	date, err := parseROCDate(row[0])
	if err != nil {
		return models.DailyBar{}, err
	}

	fields := make([]float64, 5)
	for i, idx := range []int{1, 3, 4, 5, 6} {
		v, err := parseGroupedNumber(row[idx])
		if err != nil {
			return models.DailyBar{}, fmt.Errorf("field %d: %w", idx, err)
		}
		fields[i] = v
	}

	return models.DailyBar{
		StockID: stockID,
		Date:    date,
		Volume:  fields[0],
		Open:    fields[1],
		High:    fields[2],
		Low:     fields[3],
		Close:   fields[4],
	}, nil
}

// parseROCDate converts a Republic-of-China calendar date like "113/01/04".
func parseROCDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid ROC date %q", s)
	}
	year, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	day, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, fmt.Errorf("invalid ROC date %q", s)
	}
	return time.Date(year+1911, time.Month(month), day, 0, 0, 0, 0, taipei), nil
}

// parseGroupedNumber parses numbers with thousands separators. A bare "--"
// marks a non-trading value.
func parseGroupedNumber(s string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" || cleaned == "--" {
		return 0, fmt.Errorf("empty numeric field")
	}
	return strconv.ParseFloat(cleaned, 64)
}
