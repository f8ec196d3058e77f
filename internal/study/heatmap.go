package study

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HeatmapDay is one calendar day's review count.
type HeatmapDay struct {
	Date  string `json:"date"` // YYYY-MM-DD in the configured timezone
	Count int    `json:"count"`
}

// Heatmap is the per-day review activity over a window ending today.
// Days holds every day in the window, zeros included, oldest first.
type Heatmap struct {
	Days          []HeatmapDay `json:"days"`
	TotalReviews  int          `json:"total_reviews"`
	MaxCount      int          `json:"max_count"`
	CurrentStreak int          `json:"current_streak"`
}

// GetHeatmap aggregates review-log entries into per-day counts for the
// last `days` calendar days. A nil deckID spans all decks. Counts
// include reviews of since-deleted cards; the log is append-only.
//
// The streak is the run of consecutive reviewed days ending today, or
// ending yesterday when today has no reviews yet. It is not capped by
// the window: older history is read until the first silent day.
func (s *Service) GetHeatmap(ctx context.Context, deckID *uuid.UUID, days int) (Heatmap, error) {
	if days <= 0 {
		days = 365
	}

	now := s.now()
	today := DayStart(now, s.loc)
	windowStart := today.AddDate(0, 0, -(days - 1))
	windowEnd := NextDayStart(now, s.loc)

	times, err := s.store.ReviewTimes(ctx, deckID, windowStart, windowEnd)
	if err != nil {
		return Heatmap{}, err
	}

	counts := make(map[string]int, len(times))
	for _, t := range times {
		counts[dayKey(t, s.loc)]++
	}

	hm := Heatmap{Days: make([]HeatmapDay, 0, days)}
	for day := windowStart; day.Before(windowEnd); day = day.AddDate(0, 0, 1) {
		key := dayKey(day, s.loc)
		count := counts[key]
		hm.Days = append(hm.Days, HeatmapDay{Date: key, Count: count})
		hm.TotalReviews += count
		if count > hm.MaxCount {
			hm.MaxCount = count
		}
	}

	start := today
	if counts[dayKey(today, s.loc)] == 0 {
		start = today.AddDate(0, 0, -1)
	}
	hm.CurrentStreak, err = s.streakFrom(ctx, deckID, counts, start, windowStart)
	if err != nil {
		return Heatmap{}, err
	}

	return hm, nil
}

// streakFrom counts consecutive reviewed days walking backwards from
// start. counts covers [loaded, now); days before that boundary are
// fetched in year-sized chunks until the first gap ends the walk.
func (s *Service) streakFrom(ctx context.Context, deckID *uuid.UUID, counts map[string]int, start, loaded time.Time) (int, error) {
	streak := 0
	for day := start; ; day = day.AddDate(0, 0, -1) {
		for day.Before(loaded) {
			prevLoaded := loaded.AddDate(0, 0, -365)
			times, err := s.store.ReviewTimes(ctx, deckID, prevLoaded, loaded)
			if err != nil {
				return 0, err
			}
			if len(times) == 0 {
				return streak, nil
			}
			for _, t := range times {
				counts[dayKey(t, s.loc)]++
			}
			loaded = prevLoaded
		}
		if counts[dayKey(day, s.loc)] == 0 {
			return streak, nil
		}
		streak++
	}
}
