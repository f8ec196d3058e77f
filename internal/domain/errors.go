package domain

import "errors"

// Sentinel errors surfaced across storage and service boundaries. Handlers
// map these to reason codes; check with errors.Is.
var (
	ErrCardNotFound  = errors.New("card not found")
	ErrDeckNotFound  = errors.New("deck not found")
	ErrDeckExists    = errors.New("deck already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrQuotaExceeded = errors.New("daily quota exceeded")
)
