package fsrs

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func noFuzzParams() Parameters {
	p := DefaultParameters()
	p.EnableFuzz = false
	return p
}

// reviewCard in a given state at a given step, already graduated values
// for Review-state cards.
func cardInState(state State, step int) Card {
	last := testNow.Add(-24 * time.Hour)
	card := Card{
		State:      state,
		Step:       step,
		Stability:  5.0,
		Difficulty: 5.0,
		Due:        testNow,
		LastReview: &last,
		Reps:       3,
	}
	if state == StateNew {
		return NewCard(testNow)
	}
	if state == StateReview {
		card.ScheduledDays = 5
	}
	return card
}

func TestReviewCardRejectsInvalidInput(t *testing.T) {
	p := noFuzzParams()

	_, err := ReviewCard(p, NewCard(testNow), Rating(0), testNow)
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = ReviewCard(p, NewCard(testNow), Rating(5), testNow)
	assert.ErrorIs(t, err, ErrInvalidRating)

	bad := NewCard(testNow)
	bad.State = State(7)
	_, err = ReviewCard(p, bad, Good, testNow)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestStateTransitions(t *testing.T) {
	p := noFuzzParams() // default steps: learning 1m,10m / relearning 10m

	tests := []struct {
		name   string
		state  State
		step   int
		rating Rating
		want   State
	}{
		{name: "new again starts learning", state: StateNew, rating: Again, want: StateLearning},
		{name: "new hard starts learning", state: StateNew, rating: Hard, want: StateLearning},
		{name: "new good advances within learning", state: StateNew, rating: Good, want: StateLearning},
		{name: "new easy fast-tracks to review", state: StateNew, rating: Easy, want: StateReview},

		{name: "learning again restarts steps", state: StateLearning, step: 1, rating: Again, want: StateLearning},
		{name: "learning hard repeats step", state: StateLearning, step: 0, rating: Hard, want: StateLearning},
		{name: "learning good mid-steps stays learning", state: StateLearning, step: 0, rating: Good, want: StateLearning},
		{name: "learning good last step graduates", state: StateLearning, step: 1, rating: Good, want: StateReview},
		{name: "learning easy graduates immediately", state: StateLearning, step: 0, rating: Easy, want: StateReview},

		{name: "review again lapses to relearning", state: StateReview, rating: Again, want: StateRelearning},
		{name: "review hard stays review", state: StateReview, rating: Hard, want: StateReview},
		{name: "review good stays review", state: StateReview, rating: Good, want: StateReview},
		{name: "review easy stays review", state: StateReview, rating: Easy, want: StateReview},

		{name: "relearning again repeats", state: StateRelearning, rating: Again, want: StateRelearning},
		{name: "relearning hard repeats", state: StateRelearning, rating: Hard, want: StateRelearning},
		{name: "relearning good returns to review", state: StateRelearning, rating: Good, want: StateReview},
		{name: "relearning easy returns to review", state: StateRelearning, rating: Easy, want: StateReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReviewCard(p, cardInState(tt.state, tt.step), tt.rating, testNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.State)
		})
	}
}

func TestAgainNeverAdvances(t *testing.T) {
	p := noFuzzParams()
	for _, state := range []State{StateNew, StateLearning, StateReview, StateRelearning} {
		got, err := ReviewCard(p, cardInState(state, 1), Again, testNow)
		require.NoError(t, err)
		assert.NotEqual(t, StateReview, got.State, "Again from %s must not land in Review", state)
		assert.Equal(t, 0, got.Step, "Again resets to the first step")
	}
}

func TestFirstReviewSetsInitialMemoryState(t *testing.T) {
	p := noFuzzParams()

	for _, rating := range AllRatings {
		got, err := ReviewCard(p, NewCard(testNow), rating, testNow)
		require.NoError(t, err)

		assert.InDelta(t, InitialStability(p.W, rating), got.Stability, 1e-9, "rating %s", rating)
		assert.InDelta(t, InitialDifficulty(p.W, rating), got.Difficulty, 1e-9, "rating %s", rating)
		assert.Equal(t, 1, got.Reps)
		assert.Equal(t, 0, got.Lapses)
		require.NotNil(t, got.LastReview)
		assert.True(t, got.LastReview.Equal(testNow))
	}
}

func TestLearningStepProgression(t *testing.T) {
	p := noFuzzParams()

	// First Good: into learning at the second step.
	step1, err := ReviewCard(p, NewCard(testNow), Good, testNow)
	require.NoError(t, err)
	assert.Equal(t, StateLearning, step1.State)
	assert.Equal(t, 1, step1.Step)
	assert.Equal(t, 0, step1.ScheduledDays, "sub-day steps carry no day interval")
	assert.True(t, step1.Due.Equal(testNow.Add(10*time.Minute)))

	// Second Good: past the last step, graduate to Review.
	later := testNow.Add(10 * time.Minute)
	grad, err := ReviewCard(p, step1, Good, later)
	require.NoError(t, err)
	assert.Equal(t, StateReview, grad.State)
	assert.Equal(t, 0, grad.Step)
	assert.GreaterOrEqual(t, grad.ScheduledDays, 1)
	assert.True(t, grad.Due.After(later.Add(23*time.Hour)))
}

func TestLearningAgainRestartsSteps(t *testing.T) {
	p := noFuzzParams()

	card := cardInState(StateLearning, 1)
	got, err := ReviewCard(p, card, Again, testNow)
	require.NoError(t, err)

	assert.Equal(t, 0, got.Step)
	assert.True(t, got.Due.Equal(testNow.Add(time.Minute)))
	assert.Equal(t, 0, got.Lapses, "failing in learning is not a lapse")
}

func TestReviewLapse(t *testing.T) {
	p := noFuzzParams()

	card := cardInState(StateReview, 0)
	got, err := ReviewCard(p, card, Again, testNow)
	require.NoError(t, err)

	assert.Equal(t, StateRelearning, got.State)
	assert.Equal(t, 1, got.Lapses)
	assert.Less(t, got.Stability, card.Stability, "lapse must shrink stability")
	assert.True(t, got.Due.Equal(testNow.Add(10*time.Minute)), "relearning step delay")
	assert.Equal(t, 0, got.ScheduledDays)
}

func TestLapseOnlyCountedOnReviewAgain(t *testing.T) {
	p := noFuzzParams()

	for _, state := range []State{StateNew, StateLearning, StateRelearning} {
		got, err := ReviewCard(p, cardInState(state, 0), Again, testNow)
		require.NoError(t, err)
		assert.Equal(t, cardInState(state, 0).Lapses, got.Lapses, "state %s", state)
	}
}

func TestIntervalOrdering(t *testing.T) {
	for _, fuzz := range []bool{false, true} {
		p := DefaultParameters()
		p.EnableFuzz = fuzz

		card := cardInState(StateReview, 0)
		previews, err := Preview(p, card, testNow)
		require.NoError(t, err)

		hard := previews[Hard].Card.ScheduledDays
		good := previews[Good].Card.ScheduledDays
		easy := previews[Easy].Card.ScheduledDays

		assert.LessOrEqual(t, hard, good, "fuzz=%v", fuzz)
		assert.Less(t, good, easy, "fuzz=%v", fuzz)
	}
}

func TestFuzzedCommitsKeepRatingOrder(t *testing.T) {
	p := DefaultParameters() // fuzz on

	// Separate ReviewCard calls per rating, as a real commit makes them.
	// The fuzz seed must not depend on the rating, or the ordering could
	// invert between the calls.
	cases := []struct {
		stability  float64
		difficulty float64
		elapsed    int
	}{
		{stability: 5, difficulty: 6, elapsed: 1},
		{stability: 20, difficulty: 8, elapsed: 1},
		{stability: 50, difficulty: 3, elapsed: 30},
		{stability: 120, difficulty: 7, elapsed: 200},
	}
	for _, tc := range cases {
		card := cardInState(StateReview, 0)
		card.Stability = tc.stability
		card.Difficulty = tc.difficulty
		last := testNow.Add(-time.Duration(tc.elapsed) * 24 * time.Hour)
		card.LastReview = &last

		hard, err := ReviewCard(p, card, Hard, testNow)
		require.NoError(t, err)
		good, err := ReviewCard(p, card, Good, testNow)
		require.NoError(t, err)
		easy, err := ReviewCard(p, card, Easy, testNow)
		require.NoError(t, err)

		assert.LessOrEqual(t, hard.ScheduledDays, good.ScheduledDays,
			"stability=%v difficulty=%v elapsed=%d", tc.stability, tc.difficulty, tc.elapsed)
		assert.LessOrEqual(t, good.ScheduledDays, easy.ScheduledDays,
			"stability=%v difficulty=%v elapsed=%d", tc.stability, tc.difficulty, tc.elapsed)
	}
}

func TestIntervalClampedToMax(t *testing.T) {
	p := noFuzzParams()
	p.MaxIntervalDays = 30

	card := cardInState(StateReview, 0)
	card.Stability = 5000 // would schedule years out unclamped

	for _, rating := range []Rating{Hard, Good, Easy} {
		got, err := ReviewCard(p, card, rating, testNow)
		require.NoError(t, err)
		assert.LessOrEqual(t, got.ScheduledDays, 30, "rating %s", rating)
		assert.GreaterOrEqual(t, got.ScheduledDays, 1)
	}
}

func TestEasyExceedsGoodOnGraduation(t *testing.T) {
	p := noFuzzParams()

	good, err := ReviewCard(p, cardInState(StateLearning, 1), Good, testNow)
	require.NoError(t, err)
	easy, err := ReviewCard(p, cardInState(StateLearning, 1), Easy, testNow)
	require.NoError(t, err)

	assert.Greater(t, easy.ScheduledDays, good.ScheduledDays)
}

func TestPreviewMatchesReviewCard(t *testing.T) {
	p := DefaultParameters() // fuzz on: determinism must hold regardless

	for _, state := range []State{StateNew, StateLearning, StateReview, StateRelearning} {
		card := cardInState(state, 0)
		previews, err := Preview(p, card, testNow)
		require.NoError(t, err)
		require.Len(t, previews, 4)

		for _, rating := range AllRatings {
			committed, err := ReviewCard(p, card, rating, testNow)
			require.NoError(t, err)
			if diff := cmp.Diff(previews[rating].Card, committed); diff != "" {
				t.Errorf("state %s rating %s: preview and commit diverge (-preview +commit):\n%s", state, rating, diff)
			}
		}
	}
}

func TestPreviewIsIdempotent(t *testing.T) {
	p := DefaultParameters()
	card := cardInState(StateReview, 0)

	first, err := Preview(p, card, testNow)
	require.NoError(t, err)
	second, err := Preview(p, card, testNow)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated previews diverge:\n%s", diff)
	}
}

func TestSameDayReviewUsesShortTermStability(t *testing.T) {
	p := noFuzzParams()

	card := cardInState(StateReview, 0)
	last := testNow.Add(-2 * time.Hour)
	card.LastReview = &last

	got, err := ReviewCard(p, card, Good, testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ElapsedDays)
	assert.Equal(t, StateReview, got.State)
	assert.InDelta(t, ShortTermStability(p.W, card.Stability, Good), got.Stability, 1e-9)

	lapsed, err := ReviewCard(p, card, Again, testNow)
	require.NoError(t, err)
	assert.Equal(t, StateRelearning, lapsed.State)
	assert.Equal(t, 1, lapsed.Lapses)
	assert.InDelta(t, ShortTermStability(p.W, card.Stability, Again), lapsed.Stability, 1e-9)
	assert.Less(t, lapsed.Stability, card.Stability)
}

func TestClockRollbackClampsElapsed(t *testing.T) {
	p := noFuzzParams()

	card := cardInState(StateReview, 0)
	past := testNow.Add(-72 * time.Hour) // before LastReview

	got, err := ReviewCard(p, card, Good, past)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ElapsedDays)
	assert.Equal(t, StateReview, got.State)
	assert.GreaterOrEqual(t, got.ScheduledDays, 1)
}

func TestReviewDoesNotMutateInput(t *testing.T) {
	p := DefaultParameters()
	card := cardInState(StateReview, 0)
	before := card

	_, err := ReviewCard(p, card, Good, testNow)
	require.NoError(t, err)

	if diff := cmp.Diff(before, card); diff != "" {
		t.Errorf("input card mutated:\n%s", diff)
	}
}

func TestParametersValidate(t *testing.T) {
	assert.NoError(t, DefaultParameters().Validate())

	p := DefaultParameters()
	p.DesiredRetention = 1.0
	assert.Error(t, p.Validate())

	p = DefaultParameters()
	p.MaxIntervalDays = 0
	assert.Error(t, p.Validate())

	p = DefaultParameters()
	p.W[0] = -1
	assert.ErrorIs(t, p.Validate(), ErrInvalidWeights)
}

func TestHardDelayBetweenFirstSteps(t *testing.T) {
	p := noFuzzParams()

	got, err := ReviewCard(p, NewCard(testNow), Hard, testNow)
	require.NoError(t, err)

	// Average of the 1m and 10m steps.
	assert.True(t, got.Due.Equal(testNow.Add(5*time.Minute+30*time.Second)))
}
