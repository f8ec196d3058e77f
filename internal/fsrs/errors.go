package fsrs

import "errors"

// Sentinel errors returned by the scheduler. Check with errors.Is.
var (
	ErrInvalidRating  = errors.New("fsrs: invalid rating")
	ErrInvalidState   = errors.New("fsrs: invalid card state")
	ErrInvalidWeights = errors.New("fsrs: invalid weights")
)
