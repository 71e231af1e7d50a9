package ml

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is returned when a stored model artifact was trained under
// a different feature schema version than the running extractor produces.
var ErrSchemaMismatch = errors.New("model schema version mismatch")

// ErrNoModel is returned when prediction is requested but no trained model
// version exists yet.
var ErrNoModel = errors.New("no trained model available")

// InsufficientDataError reports that a training operation could not run
// because too few usable samples were available. Callers can distinguish it
// from infrastructure failures and decide to wait for more data.
type InsufficientDataError struct {
	Op        string
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient training data: need %d samples, have %d",
		e.Op, e.Required, e.Available)
}

// IsInsufficientData reports whether err is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}
