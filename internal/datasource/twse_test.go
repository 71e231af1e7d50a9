package datasource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/stock-insight/internal/config"
)

func TestParseROCDate(t *testing.T) {
	date, err := parseROCDate("113/01/05")
	require.NoError(t, err)
	assert.Equal(t, 2024, date.Year())
	assert.Equal(t, time.January, date.Month())
	assert.Equal(t, 5, date.Day())

	_, err = parseROCDate("2024-01-05")
	assert.Error(t, err)
	_, err = parseROCDate("113/xx/05")
	assert.Error(t, err)
}

func TestParseGroupedNumber(t *testing.T) {
	v, err := parseGroupedNumber("1,234,567")
	require.NoError(t, err)
	assert.Equal(t, 1234567.0, v)

	v, err = parseGroupedNumber(" 582.00 ")
	require.NoError(t, err)
	assert.Equal(t, 582.0, v)

	_, err = parseGroupedNumber("--")
	assert.Error(t, err)
	_, err = parseGroupedNumber("")
	assert.Error(t, err)
}

func TestParseStockDayRow(t *testing.T) {
	row := []string{"113/01/05", "25,471,622", "14,788,868,778", "578.00", "582.00", "576.00", "580.00", "+4.00", "27,128"}

	bar, err := parseStockDayRow("2330", row)
	require.NoError(t, err)
	assert.Equal(t, "2330", bar.StockID)
	assert.Equal(t, 2024, bar.Date.Year())
	assert.Equal(t, 25471622.0, bar.Volume)
	assert.Equal(t, 578.0, bar.Open)
	assert.Equal(t, 582.0, bar.High)
	assert.Equal(t, 576.0, bar.Low)
	assert.Equal(t, 580.0, bar.Close)

	_, err = parseStockDayRow("2330", []string{"113/01/05", "1"})
	assert.Error(t, err)
}

func testProviderConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:        baseURL,
		TimeoutSeconds: 5,
		RateLimit:      100,
		MaxRetries:     1,
	}
}

func TestFetchDailyBars(t *testing.T) {
	payload := map[string]interface{}{
		"stat": "OK",
		"data": [][]string{
			{"113/01/04", "20,000,000", "0", "575.00", "580.00", "572.00", "578.00", "+3.00", "25,000"},
			{"113/01/05", "25,471,622", "0", "578.00", "582.00", "576.00", "580.00", "+2.00", "27,128"},
			// Non-trading day rows carry "--" and are skipped.
			{"113/01/06", "--", "--", "--", "--", "--", "--", "--", "--"},
		},
	}

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	source := NewTWSESource(testProviderConfig(server.URL), nil, nil)
	month := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars, err := source.FetchDailyBars(context.Background(), "2330", month)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 578.0, bars[0].Close)
	assert.Equal(t, 580.0, bars[1].Close)
	assert.Contains(t, gotPath, "/exchangeReport/STOCK_DAY")
	assert.Contains(t, gotPath, "date=20240101")
	assert.Contains(t, gotPath, "stockNo=2330")
}

// TestFetchDailyBarsNotFound tests the exchange's "no data" reply, which comes
// back 200 with a non-OK stat
func TestFetchDailyBarsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"stat": "很抱歉，沒有符合條件的資料!"})
	}))
	defer server.Close()

	source := NewTWSESource(testProviderConfig(server.URL), nil, nil)
	_, err := source.FetchDailyBars(context.Background(), "0000", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)

	var sourceErr *SourceError
	require.ErrorAs(t, err, &sourceErr)
	assert.Equal(t, ErrCodeNotFound, sourceErr.Code)
	assert.Equal(t, "twse", sourceErr.Source)
}

func TestFetchDailyBarsMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	source := NewTWSESource(testProviderConfig(server.URL), nil, nil)
	_, err := source.FetchDailyBars(context.Background(), "2330", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)

	var sourceErr *SourceError
	require.ErrorAs(t, err, &sourceErr)
	assert.Equal(t, ErrCodeInvalidData, sourceErr.Code)
}

func TestFetchDailyBarsUsesCache(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"stat": "OK",
			"data": [][]string{
				{"113/01/04", "20,000,000", "0", "575.00", "580.00", "572.00", "578.00", "+3.00", "25,000"},
			},
		})
	}))
	defer server.Close()

	cache := NewBarCache(5*time.Minute, time.Hour, nil)
	source := NewTWSESource(testProviderConfig(server.URL), cache, nil)
	month := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := source.FetchDailyBars(context.Background(), "2330", month)
	require.NoError(t, err)
	second, err := source.FetchDailyBars(context.Background(), "2330", month)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, requests)
}
