package study

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayStart(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:30 UTC is still the previous day in New York.
	instant := time.Date(2026, time.March, 10, 3, 30, 0, 0, time.UTC)

	utcStart := DayStart(instant, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), utcStart)

	nyStart := DayStart(instant, ny)
	assert.Equal(t, 9, nyStart.Day(), "local day boundary lags UTC")
	assert.Equal(t, 0, nyStart.Hour())
}

func TestNextDayStartAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-03-08 is the US spring-forward date: the day is 23 hours.
	instant := time.Date(2026, time.March, 8, 12, 0, 0, 0, ny)
	next := NextDayStart(instant, ny)

	assert.Equal(t, time.Date(2026, time.March, 9, 0, 0, 0, 0, ny), next)
	assert.InDelta(t, 23.0, next.Sub(DayStart(instant, ny)).Hours(), 0.01)
}
