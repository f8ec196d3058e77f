package fsrs

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

// fuzzRange is one tier of the 3-tier interval fuzz. Longer intervals absorb
// proportionally smaller perturbation.
type fuzzRange struct {
	start  float64
	end    float64
	factor float64
}

var fuzzRanges = []fuzzRange{
	{start: 2.5, end: 7.0, factor: 0.15},
	{start: 7.0, end: 20.0, factor: 0.10},
	{start: 20.0, end: math.MaxFloat64, factor: 0.05},
}

// fuzzBounds returns the inclusive [min, max] day range an interval may be
// fuzzed into. Intervals under 2.5 days are never fuzzed.
func fuzzBounds(interval, elapsedDays float64, maxIntervalDays int) (minIvl, maxIvl int) {
	if interval < 2.5 {
		rounded := int(math.Round(interval))
		return rounded, rounded
	}

	delta := 1.0
	for _, r := range fuzzRanges {
		delta += r.factor * math.Max(math.Min(interval, r.end)-r.start, 0)
	}

	minIvl = int(math.Round(interval - delta))
	maxIvl = int(math.Round(interval + delta))

	if minIvl < 2 {
		minIvl = 2
	}
	// Never fuzz a growing interval back below the days already elapsed.
	if interval > elapsedDays {
		if ed := int(elapsedDays); minIvl <= ed {
			minIvl = ed + 1
		}
	}
	if maxIvl > maxIntervalDays {
		maxIvl = maxIntervalDays
	}
	if minIvl > maxIvl {
		minIvl = maxIvl
	}
	return minIvl, maxIvl
}

// applyFuzz perturbs an interval within its fuzz bounds using the given seed.
// Identical inputs always produce identical output, which keeps the scheduler
// pure and makes rating previews exactly match the committed review.
func applyFuzz(interval, elapsedDays float64, maxIntervalDays int, seed int64) int {
	if interval < 2.5 {
		return int(math.Round(interval))
	}

	minIvl, maxIvl := fuzzBounds(interval, elapsedDays, maxIntervalDays)
	if minIvl >= maxIvl {
		return minIvl
	}

	//nolint:gosec // deterministic scheduling jitter, not cryptographic
	rng := rand.New(rand.NewSource(seed))
	return minIvl + rng.Intn(maxIvl-minIvl+1)
}

// FuzzSeed derives a deterministic fuzz seed from the review instant and card
// state via FNV-1a. Seeding from inputs instead of the wall clock keeps
// (state, rating, now) → interval a pure function.
func FuzzSeed(now time.Time, reps int, difficulty, stability float64) int64 {
	h := fnv.New64a()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(now.Unix()))
	h.Write(b[:])
	binary.LittleEndian.PutUint64(b[:], uint64(reps))
	h.Write(b[:])
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(difficulty))
	h.Write(b[:])
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(stability))
	h.Write(b[:])
	return int64(h.Sum64())
}
