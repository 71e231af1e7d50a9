package backtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// defaultTailLength bounds how many trades and equity points a report keeps.
const defaultTailLength = 100

// Trimmed returns a copy of the result with only the last n trades and
// equity points, for compact payloads. n <= 0 uses the default.
func (r *Result) Trimmed(n int) *Result {
	if n <= 0 {
		n = defaultTailLength
	}
	out := *r
	if len(out.Trades) > n {
		out.Trades = out.Trades[len(out.Trades)-n:]
	}
	if len(out.EquityCurve) > n {
		out.EquityCurve = out.EquityCurve[len(out.EquityCurve)-n:]
	}
	return &out
}

// ExportToJSON writes the result to disk, creating parent directories.
func ExportToJSON(result *Result, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal backtest result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write backtest result: %w", err)
	}
	return nil
}

// ConsoleReport renders a short human-readable summary.
func ConsoleReport(r *Result) string {
	s := r.Stats
	return fmt.Sprintf(
		"%s / %s: return %.2f%% (annualized %.2f%%), max drawdown %.2f%%, sharpe %.2f, "+
			"win rate %.1f%% over %d closed trades, fees %.2f, tax %.2f",
		r.StockID, r.Strategy,
		s.TotalReturn*100, s.AnnualizedReturn*100, s.MaxDrawdown*100, s.SharpeRatio,
		s.WinRate*100, s.ClosedTrades, s.TotalFees, s.TotalTax,
	)
}
