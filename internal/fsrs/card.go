package fsrs

import (
	"math"
	"time"
)

// Card holds the scheduling state of one flashcard. It is a plain value:
// the scheduler never mutates its input and storage reads it back verbatim.
type Card struct {
	State         State      `json:"state"`
	Step          int        `json:"step"` // index into learning/relearning steps; 0 outside those states
	Stability     float64    `json:"stability"`
	Difficulty    float64    `json:"difficulty"`
	Due           time.Time  `json:"due"`
	LastReview    *time.Time `json:"last_review,omitempty"` // nil before first review
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	ScheduledDays int        `json:"scheduled_days"`
	ElapsedDays   int        `json:"elapsed_days"`
}

// NewCard returns the scheduling state of a freshly created card: StateNew,
// immediately due, zero memory state.
func NewCard(now time.Time) Card {
	return Card{
		State: StateNew,
		Due:   now,
	}
}

// Retrievability estimates the probability of recall at the given instant.
// It is 0 for a card that has never been reviewed and always lies in [0, 1].
func (c Card) Retrievability(now time.Time) float64 {
	if c.LastReview == nil || c.Stability <= 0 {
		return 0
	}
	elapsed := elapsedDays(*c.LastReview, now)
	return Retrievability(elapsed, c.Stability)
}

// elapsedDays returns whole days between last review and now, clamped to a
// minimum of 0 so a clock rollback never produces a negative elapsed time.
func elapsedDays(lastReview, now time.Time) int {
	d := now.Sub(lastReview).Hours() / 24.0
	if d < 0 {
		return 0
	}
	return int(math.Floor(d))
}
