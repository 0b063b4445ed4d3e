// utils/dates.go
package utils

import "time"

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// BeginningOfDayUTC strips the time of day after converting t to UTC.
func BeginningOfDayUTC(t time.Time) time.Time {
	return BeginningOfDay(t.UTC())
}

// DaysBetween counts calendar days from start to end, negative when end is
// earlier. Both values are normalized to midnight UTC first.
func DaysBetween(start, end time.Time) int {
	start = BeginningOfDayUTC(start)
	end = BeginningOfDayUTC(end)
	return int(end.Sub(start).Hours() / 24)
}
