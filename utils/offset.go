// utils/offset.go
package utils

import (
	"fmt"
	"time"
)

type OffsetDirection string

const (
	OffsetBefore OffsetDirection = "before"
	OffsetAfter  OffsetDirection = "after"
	OffsetSame   OffsetDirection = "same"
)

// Offset is the distance of a send time from the event date in whole days.
// Days carries the sign: negative means before the event.
type Offset struct {
	Days      int             `json:"days"`
	Direction OffsetDirection `json:"direction"`
}

// ComputeOffset returns how many calendar days scheduledTime lies after
// eventDate. Time of day is ignored on both inputs.
func ComputeOffset(scheduledTime, eventDate time.Time) Offset {
	days := DaysBetween(eventDate, scheduledTime)
	switch {
	case days == 0:
		return Offset{Days: 0, Direction: OffsetSame}
	case days > 0:
		return Offset{Days: days, Direction: OffsetAfter}
	default:
		return Offset{Days: days, Direction: OffsetBefore}
	}
}

// Magnitude is the unsigned day count.
func (o Offset) Magnitude() int {
	if o.Days < 0 {
		return -o.Days
	}
	return o.Days
}

// Label renders the offset for display. Unknown locales use English.
func (o Offset) Label(locale string) string {
	n := o.Magnitude()
	switch locale {
	case "he":
		if o.Direction == OffsetSame {
			return "ביום האירוע"
		}
		when := "לפני"
		if o.Direction == OffsetAfter {
			when = "אחרי"
		}
		if n == 1 {
			return fmt.Sprintf("יום אחד %s", when)
		}
		return fmt.Sprintf("%d ימים %s", n, when)
	default:
		if o.Direction == OffsetSame {
			return "on event day"
		}
		unit := "days"
		if n == 1 {
			unit = "day"
		}
		return fmt.Sprintf("%d %s %s", n, unit, o.Direction)
	}
}

// ComputeOffsetIn compares the calendar dates both times fall on in loc.
// Use it when the event date is meaningful in a local time zone.
func ComputeOffsetIn(scheduledTime, eventDate time.Time, loc *time.Location) Offset {
	if loc == nil {
		loc = time.UTC
	}
	return ComputeOffset(calendarDate(scheduledTime.In(loc)), calendarDate(eventDate.In(loc)))
}

func calendarDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
