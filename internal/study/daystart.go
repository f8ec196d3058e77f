package study

import "time"

// DayStart returns local midnight of the day containing t in loc.
// Quotas and the heatmap bucket by this boundary, so "today" follows
// the user's wall clock rather than UTC.
func DayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NextDayStart returns the start of the day after the one containing t.
// AddDate handles DST transitions where the day is not 24 hours.
func NextDayStart(t time.Time, loc *time.Location) time.Time {
	return DayStart(t, loc).AddDate(0, 0, 1)
}

// dayKey formats a day for heatmap buckets.
func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
