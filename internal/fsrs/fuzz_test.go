package fsrs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFuzzDeterminism(t *testing.T) {
	seed := FuzzSeed(testNow, 5, 4.2, 17.3)
	first := applyFuzz(30, 10, 365, seed)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, applyFuzz(30, 10, 365, seed))
	}
}

func TestFuzzSeedSensitivity(t *testing.T) {
	base := FuzzSeed(testNow, 5, 4.2, 17.3)
	assert.NotEqual(t, base, FuzzSeed(testNow.Add(time.Second), 5, 4.2, 17.3))
	assert.NotEqual(t, base, FuzzSeed(testNow, 6, 4.2, 17.3))
	assert.NotEqual(t, base, FuzzSeed(testNow, 5, 4.3, 17.3))
	assert.NotEqual(t, base, FuzzSeed(testNow, 5, 4.2, 17.4))
}

func TestFuzzShortIntervalsUntouched(t *testing.T) {
	for _, ivl := range []float64{1, 2, 2.4} {
		got := applyFuzz(ivl, 0, 365, 12345)
		assert.Equal(t, int(ivl+0.5), got, "interval %v must not be fuzzed", ivl)
	}
}

func TestFuzzBounds(t *testing.T) {
	tests := []struct {
		name     string
		interval float64
		elapsed  float64
		maxDays  int
	}{
		{name: "small tier", interval: 5, elapsed: 2, maxDays: 365},
		{name: "middle tier", interval: 15, elapsed: 10, maxDays: 365},
		{name: "large tier", interval: 120, elapsed: 80, maxDays: 365},
		{name: "near the cap", interval: 360, elapsed: 300, maxDays: 365},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minIvl, maxIvl := fuzzBounds(tt.interval, tt.elapsed, tt.maxDays)
			assert.GreaterOrEqual(t, minIvl, 2)
			assert.LessOrEqual(t, maxIvl, tt.maxDays)
			assert.LessOrEqual(t, minIvl, maxIvl)
			if tt.interval > tt.elapsed {
				assert.Greater(t, minIvl, int(tt.elapsed), "growing interval must stay past elapsed days")
			}

			// Every seed must land inside the bounds.
			for seed := int64(0); seed < 200; seed++ {
				got := applyFuzz(tt.interval, tt.elapsed, tt.maxDays, seed)
				assert.GreaterOrEqual(t, got, minIvl)
				assert.LessOrEqual(t, got, maxIvl)
			}
		})
	}
}

// The relative fuzz width shrinks tier by tier: ±15% under a week, ±10%
// under three weeks, ±5% beyond.
func TestFuzzTiersNarrowRelatively(t *testing.T) {
	width := func(interval float64) float64 {
		minIvl, maxIvl := fuzzBounds(interval, 0, 100000)
		return float64(maxIvl-minIvl) / interval
	}
	assert.Greater(t, width(5), width(15))
	assert.Greater(t, width(15), width(1000))
}
