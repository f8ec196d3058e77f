// Package fsrs implements the FSRS-5 spaced-repetition memory model: a pure
// state machine over (difficulty, stability, retrievability) driven by the
// four recall ratings. All entry points are deterministic given their inputs,
// including interval fuzz, which is seeded from card state rather than a
// wall-clock RNG.
package fsrs

import (
	"fmt"
	"math"
)

// MinStability is the floor for stability values. Stability is a divisor in
// the retrievability curve, so it must stay strictly positive.
const MinStability = 0.1

// Difficulty bounds. Difficulty is clamped into this range after every update.
const (
	MinDifficulty = 1.0
	MaxDifficulty = 10.0
)

// DefaultWeights are the published FSRS-5 default model weights w[0]..w[18].
var DefaultWeights = [19]float64{
	0.4072,  // w0  initial stability, Again
	1.1829,  // w1  initial stability, Hard
	3.1262,  // w2  initial stability, Good
	15.4722, // w3  initial stability, Easy
	7.2102,  // w4  initial difficulty baseline
	0.5316,  // w5  initial difficulty slope
	1.0651,  // w6  difficulty delta per rating step
	0.0046,  // w7  difficulty mean-reversion weight
	1.5418,  // w8  recall stability scale
	0.1594,  // w9  recall stability, stability exponent
	1.01,    // w10 recall stability, retrievability exponent
	2.1791,  // w11 forget stability scale
	0.0292,  // w12 forget stability, difficulty exponent
	0.2788,  // w13 forget stability, stability exponent
	0.2229,  // w14 forget stability, retrievability exponent
	0.2604,  // w15 hard penalty
	3.3928,  // w16 easy bonus
	0.2223,  // w17 short-term stability scale
	0.6744,  // w18 short-term stability offset
}

// Retrievability is the recall-probability curve:
//
//	R(t, S) = (1 + t/(9*S))^-1
//
// monotonically decreasing in elapsed days, increasing in stability, and in
// [0, 1] for all finite non-negative inputs.
func Retrievability(elapsedDays int, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	return math.Pow(1+float64(elapsedDays)/(9*stability), -1)
}

// NextInterval converts stability and desired retention into a review
// interval in days:
//
//	I(S, r) = round(9 * S * (1/r - 1)), at least 1
func NextInterval(stability, desiredRetention float64) int {
	if desiredRetention <= 0 || desiredRetention >= 1 {
		return 1
	}
	ivl := 9 * stability * (1/desiredRetention - 1)
	if rounded := int(math.Round(ivl)); rounded > 1 {
		return rounded
	}
	return 1
}

// InitialStability is S0(G) = w[G-1], floored at MinStability. Used only on a
// card's first-ever review, where there is no prior stability to grow from.
func InitialStability(w [19]float64, rating Rating) float64 {
	idx := int(rating) - 1
	if idx < 0 || idx > 3 {
		idx = int(Good) - 1
	}
	return clampStability(w[idx])
}

// InitialDifficulty is D0(G) = w4 - e^(w5*(G-1)) + 1, clamped to [1, 10].
// Higher ratings produce lower initial difficulty.
func InitialDifficulty(w [19]float64, rating Rating) float64 {
	d := w[4] - math.Exp(w[5]*float64(rating-1)) + 1
	return clampDifficulty(d)
}

// NextDifficulty moves difficulty toward the rating-dependent target and then
// pulls it partway back toward the Easy baseline (mean reversion):
//
//	D'(D, G) = w7 * D0(Easy) + (1 - w7) * (D - w6*(G - 3))
func NextDifficulty(w [19]float64, d float64, rating Rating) float64 {
	d0Easy := w[4] - math.Exp(w[5]*float64(Easy-1)) + 1
	next := w[7]*d0Easy + (1-w[7])*(d-w[6]*(float64(rating)-3))
	return clampDifficulty(next)
}

// StabilityAfterRecall grows stability after a successful cross-day recall
// (Hard, Good or Easy):
//
//	S'(S, D, R, G) = S * (1 + e^w8 * (11-D) * S^-w9 * (e^(w10*(1-R)) - 1) * hardPenalty * easyBonus)
//
// Growth shrinks as difficulty rises and as stability itself grows, which
// bounds runaway intervals on easy, heavily overdue cards.
func StabilityAfterRecall(w [19]float64, s, d, r float64, rating Rating) float64 {
	hardPenalty := 1.0
	if rating == Hard {
		hardPenalty = w[15]
	}
	easyBonus := 1.0
	if rating == Easy {
		easyBonus = w[16]
	}
	next := s * (1 + math.Exp(w[8])*
		(11-d)*
		math.Pow(s, -w[9])*
		(math.Exp(w[10]*(1-r))-1)*
		hardPenalty*
		easyBonus)
	return clampStability(next)
}

// StabilityAfterForgetting shrinks stability after a lapse (Again):
//
//	S'(S, D, R) = w11 * D^-w12 * ((S+1)^w13 - 1) * e^(w14*(1-R))
//
// capped at S / e^(w17*w18) so a lapse can never leave stability above the
// pre-lapse value.
func StabilityAfterForgetting(w [19]float64, s, d, r float64) float64 {
	forget := w[11] *
		math.Pow(d, -w[12]) *
		(math.Pow(s+1, w[13]) - 1) *
		math.Exp(w[14]*(1-r))
	ceiling := s / math.Exp(w[17]*w[18])
	return clampStability(math.Min(forget, ceiling))
}

// ShortTermStability adjusts stability for a same-day or learning-step review:
//
//	S'(S, G) = S * e^(w17 * (G - 3 + w18))
func ShortTermStability(w [19]float64, s float64, rating Rating) float64 {
	return clampStability(s * math.Exp(w[17]*(float64(rating)-3+w[18])))
}

// ValidateWeights rejects weight sets that could produce degenerate state:
// non-finite values anywhere, or non-positive initial stabilities.
func ValidateWeights(w [19]float64) error {
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: w[%d] = %v", ErrInvalidWeights, i, v)
		}
	}
	for i := 0; i < 4; i++ {
		if w[i] <= 0 {
			return fmt.Errorf("%w: initial stability w[%d] must be positive", ErrInvalidWeights, i)
		}
	}
	return nil
}

// clampDifficulty constrains difficulty to [MinDifficulty, MaxDifficulty].
// NaN maps to the neutral midpoint rather than propagating.
func clampDifficulty(d float64) float64 {
	if math.IsNaN(d) {
		return (MinDifficulty + MaxDifficulty) / 2
	}
	return math.Max(MinDifficulty, math.Min(MaxDifficulty, d))
}

// clampStability constrains stability to at least MinStability. NaN maps to
// the floor rather than propagating.
func clampStability(s float64) float64 {
	if math.IsNaN(s) {
		return MinStability
	}
	return math.Max(MinStability, s)
}
