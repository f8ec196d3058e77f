package fsrs

import (
	"fmt"
	"time"
)

// Parameters holds the full scheduler configuration.
type Parameters struct {
	W                [19]float64
	DesiredRetention float64
	MaxIntervalDays  int
	EnableFuzz       bool
	LearningSteps    []time.Duration
	RelearningSteps  []time.Duration
}

// DefaultParameters returns the stock configuration: 90% target retention,
// one-year interval cap, fuzz on, Anki-style learning steps.
func DefaultParameters() Parameters {
	return Parameters{
		W:                DefaultWeights,
		DesiredRetention: 0.9,
		MaxIntervalDays:  365,
		EnableFuzz:       true,
		LearningSteps:    []time.Duration{time.Minute, 10 * time.Minute},
		RelearningSteps:  []time.Duration{10 * time.Minute},
	}
}

// Validate checks the parameter set for values that would break the model's
// invariants.
func (p Parameters) Validate() error {
	if err := ValidateWeights(p.W); err != nil {
		return err
	}
	if p.DesiredRetention <= 0 || p.DesiredRetention >= 1 {
		return fmt.Errorf("desired retention %v out of range (0, 1)", p.DesiredRetention)
	}
	if p.MaxIntervalDays < 1 {
		return fmt.Errorf("max interval %d must be at least 1 day", p.MaxIntervalDays)
	}
	return nil
}

// Outcome is the result of reviewing a card with one particular rating.
type Outcome struct {
	Card     Card
	Interval time.Duration // delay until the card is due again
}

// ReviewCard computes the card's next scheduling state for one rating at one
// instant. Pure: the input card is not mutated, and identical inputs always
// yield identical output (fuzz is seeded from the inputs). A `now` earlier
// than the last review is treated as zero elapsed days rather than an error.
func ReviewCard(p Parameters, card Card, rating Rating, now time.Time) (Card, error) {
	if !rating.IsValid() {
		return Card{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}
	if !card.State.IsValid() {
		return Card{}, fmt.Errorf("%w: %d", ErrInvalidState, int(card.State))
	}

	elapsed := 0
	if card.LastReview != nil {
		elapsed = elapsedDays(*card.LastReview, now)
	}
	card.ElapsedDays = elapsed
	card.Reps++
	card.LastReview = &now

	switch card.State {
	case StateNew:
		return reviewNew(p, card, rating, now), nil
	case StateLearning:
		return reviewLearning(p, card, rating, now, p.LearningSteps), nil
	case StateRelearning:
		return reviewLearning(p, card, rating, now, p.RelearningSteps), nil
	default: // StateReview
		return reviewGraduated(p, card, rating, now, elapsed), nil
	}
}

// Preview computes the outcome of every rating without committing any of
// them. Idempotent and consistent with ReviewCard: the outcome for the rating
// eventually chosen is byte-for-byte the state ReviewCard would produce.
func Preview(p Parameters, card Card, now time.Time) (map[Rating]Outcome, error) {
	outcomes := make(map[Rating]Outcome, len(AllRatings))
	for _, r := range AllRatings {
		next, err := ReviewCard(p, card, r, now)
		if err != nil {
			return nil, err
		}
		outcomes[r] = Outcome{Card: next, Interval: next.Due.Sub(now)}
	}
	return outcomes, nil
}

// reviewNew handles the first-ever review: stability and difficulty come from
// the rating-specific initial constants, not the growth formulas.
func reviewNew(p Parameters, card Card, rating Rating, now time.Time) Card {
	card.Stability = InitialStability(p.W, rating)
	card.Difficulty = InitialDifficulty(p.W, rating)

	steps := stepsOrDefault(p.LearningSteps)

	switch rating {
	case Again:
		card.State = StateLearning
		card.Step = 0
		return holdAtStep(card, now, steps[0])

	case Hard:
		card.State = StateLearning
		card.Step = 0
		// Hard sits between repeating and advancing: average of the first
		// two steps when both exist.
		delay := steps[0]
		if len(steps) > 1 {
			delay = (steps[0] + steps[1]) / 2
		}
		return holdAtStep(card, now, delay)

	case Good:
		if len(steps) > 1 {
			card.State = StateLearning
			card.Step = 1
			return holdAtStep(card, now, steps[1])
		}
		return graduate(p, card, now, card.Stability)

	default: // Easy fast-tracks straight to Review.
		card = graduate(p, card, now, card.Stability)
		return ensureAboveGood(p, card, now, InitialStability(p.W, Good))
	}
}

// reviewLearning handles Learning and Relearning cards working through
// sub-day steps.
func reviewLearning(p Parameters, card Card, rating Rating, now time.Time, steps []time.Duration) Card {
	steps = stepsOrDefault(steps)

	// Short-term stability applies to every rating on a step review.
	preStability := card.Stability
	card.Stability = ShortTermStability(p.W, card.Stability, rating)
	card.Difficulty = NextDifficulty(p.W, card.Difficulty, rating)

	switch rating {
	case Again:
		card.Step = 0
		return holdAtStep(card, now, steps[0])

	case Hard:
		step := card.Step
		if step >= len(steps) {
			step = len(steps) - 1
		}
		return holdAtStep(card, now, steps[step])

	case Good:
		next := card.Step + 1
		if next >= len(steps) {
			return graduate(p, card, now, card.Stability)
		}
		card.Step = next
		return holdAtStep(card, now, steps[next])

	default: // Easy
		card = graduate(p, card, now, card.Stability)
		// Keep Easy strictly ahead of what Good would have produced.
		return ensureAboveGood(p, card, now, ShortTermStability(p.W, preStability, Good))
	}
}

// reviewGraduated handles cards in the long-term Review cycle. All four
// outcomes are computed so interval ordering (Again ≤ Hard ≤ Good < Easy) can
// be enforced before the chosen one is applied.
func reviewGraduated(p Parameters, card Card, rating Rating, now time.Time, elapsed int) Card {
	// A same-day re-review has no cross-day forgetting to model, so
	// stability moves by the short-term update instead of the recall
	// and forget formulas.
	sameDay := elapsed < 1

	r := 1.0
	if !sameDay {
		r = Retrievability(elapsed, card.Stability)
	}
	preDifficulty := card.Difficulty
	card.Difficulty = NextDifficulty(p.W, card.Difficulty, rating)

	if rating == Again {
		// Lapse: the card was learned and has now been forgotten.
		card.Lapses++
		card.State = StateRelearning
		card.Step = 0
		if sameDay {
			card.Stability = ShortTermStability(p.W, card.Stability, Again)
		} else {
			card.Stability = StabilityAfterForgetting(p.W, card.Stability, preDifficulty, r)
		}

		steps := stepsOrDefault(p.RelearningSteps)
		return holdAtStep(card, now, steps[0])
	}

	var hardS, goodS, easyS float64
	if sameDay {
		hardS = ShortTermStability(p.W, card.Stability, Hard)
		goodS = ShortTermStability(p.W, card.Stability, Good)
		easyS = ShortTermStability(p.W, card.Stability, Easy)
	} else {
		hardS = StabilityAfterRecall(p.W, card.Stability, preDifficulty, r, Hard)
		goodS = StabilityAfterRecall(p.W, card.Stability, preDifficulty, r, Good)
		easyS = StabilityAfterRecall(p.W, card.Stability, preDifficulty, r, Easy)
	}

	hardIvl := clampInterval(NextInterval(hardS, p.DesiredRetention), p.MaxIntervalDays)
	goodIvl := clampInterval(NextInterval(goodS, p.DesiredRetention), p.MaxIntervalDays)
	easyIvl := clampInterval(NextInterval(easyS, p.DesiredRetention), p.MaxIntervalDays)

	hardIvl, goodIvl, easyIvl = orderIntervals(hardIvl, goodIvl, easyIvl, p.MaxIntervalDays)

	if p.EnableFuzz {
		// The seed must come from pre-review values only. A rating-
		// dependent seed would fuzz the four outcomes independently,
		// and the ordering enforced above could invert between them.
		seed := FuzzSeed(now, card.Reps, preDifficulty, card.Stability)
		ed := float64(elapsed)
		hardIvl = applyFuzz(float64(hardIvl), ed, p.MaxIntervalDays, seed)
		goodIvl = applyFuzz(float64(goodIvl), ed, p.MaxIntervalDays, seed+1)
		easyIvl = applyFuzz(float64(easyIvl), ed, p.MaxIntervalDays, seed+2)
		hardIvl, goodIvl, easyIvl = orderIntervals(hardIvl, goodIvl, easyIvl, p.MaxIntervalDays)
	}

	var ivl int
	switch rating {
	case Hard:
		ivl = hardIvl
		card.Stability = hardS
	case Good:
		ivl = goodIvl
		card.Stability = goodS
	default: // Easy
		ivl = easyIvl
		card.Stability = easyS
	}

	card.State = StateReview
	card.Step = 0
	card.ScheduledDays = clampInterval(ivl, p.MaxIntervalDays)
	card.Due = now.Add(time.Duration(card.ScheduledDays) * 24 * time.Hour)
	return card
}

// graduate moves a card into the Review state with a day-scale interval
// derived from its stability.
func graduate(p Parameters, card Card, now time.Time, stability float64) Card {
	card.State = StateReview
	card.Step = 0
	card.Stability = stability

	ivl := clampInterval(NextInterval(stability, p.DesiredRetention), p.MaxIntervalDays)
	card.ScheduledDays = ivl
	card.Due = now.Add(time.Duration(ivl) * 24 * time.Hour)
	return card
}

// ensureAboveGood bumps an Easy graduation so its interval strictly exceeds
// the interval a Good rating would have produced from the same pre-review
// state.
func ensureAboveGood(p Parameters, card Card, now time.Time, goodStability float64) Card {
	goodIvl := clampInterval(NextInterval(goodStability, p.DesiredRetention), p.MaxIntervalDays)
	if card.ScheduledDays <= goodIvl {
		card.ScheduledDays = clampInterval(goodIvl+1, p.MaxIntervalDays)
		card.Due = now.Add(time.Duration(card.ScheduledDays) * 24 * time.Hour)
	}
	return card
}

// holdAtStep keeps a card on a sub-day learning delay: no day-scale interval
// is scheduled.
func holdAtStep(card Card, now time.Time, delay time.Duration) Card {
	card.ScheduledDays = 0
	card.Due = now.Add(delay)
	return card
}

// orderIntervals enforces Hard ≤ Good < Easy after clamping or fuzz may have
// disturbed the natural ordering.
func orderIntervals(hard, good, easy, maxDays int) (int, int, int) {
	if hard > good {
		hard = good
	}
	if good <= hard {
		good = hard + 1
	}
	if easy <= good {
		easy = good + 1
	}
	return clampInterval(hard, maxDays), clampInterval(good, maxDays), clampInterval(easy, maxDays)
}

// clampInterval constrains a day interval to [1, maxDays].
func clampInterval(ivl, maxDays int) int {
	if ivl < 1 {
		return 1
	}
	if ivl > maxDays {
		return maxDays
	}
	return ivl
}

func stepsOrDefault(steps []time.Duration) []time.Duration {
	if len(steps) == 0 {
		return []time.Duration{time.Minute}
	}
	return steps
}
