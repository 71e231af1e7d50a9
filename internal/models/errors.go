package models

import "errors"

// Custom errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrForbidden    = errors.New("operation forbidden")
	ErrDuplicateKey = errors.New("duplicate key violation")
	ErrInvalidID    = errors.New("invalid ID format")
)
