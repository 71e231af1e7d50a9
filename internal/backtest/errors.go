package backtest

import (
	"errors"
	"fmt"
)

// InsufficientHistoryError reports that the price series is too short for the
// chosen strategy, with a remediation hint instead of a silent empty run.
type InsufficientHistoryError struct {
	StockID     string
	Strategy    string
	Required    int
	Available   int
	Remediation string
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient price history for %s with strategy %s: need %d bars, have %d (%s)",
		e.StockID, e.Strategy, e.Required, e.Available, e.Remediation)
}

// IsInsufficientHistory reports whether err is an InsufficientHistoryError.
func IsInsufficientHistory(err error) bool {
	var target *InsufficientHistoryError
	return errors.As(err, &target)
}
