// Package datasource fetches market data from external providers.
package datasource

import (
	"context"
	"time"

	"github.com/yourusername/stock-insight/internal/models"
)

// BarSource fetches daily OHLCV bars from an external provider.
type BarSource interface {
	// FetchDailyBars returns one month of daily bars for a stock, oldest
	// first. month identifies the calendar month to fetch.
	FetchDailyBars(ctx context.Context, stockID string, month time.Time) ([]models.DailyBar, error)

	// Name returns the provider name.
	Name() string
}

// SourceError wraps provider failures with the provider name and a stable
// error code callers can branch on.
type SourceError struct {
	Source  string
	Code    string
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Error codes for SourceError.
const (
	ErrCodeNetwork     = "network_error"
	ErrCodeServer      = "server_error"
	ErrCodeNotFound    = "not_found"
	ErrCodeInvalidData = "invalid_data"
)
