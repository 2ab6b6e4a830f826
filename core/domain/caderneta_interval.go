package domain

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// MonthInterval covers the whole calendar month in loc.
func MonthInterval(year int, month time.Month, loc *time.Location) Interval {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Interval{Start: start, End: start.AddDate(0, 1, 0)}
}

// CurrentMonth is the month containing now.
func CurrentMonth(now time.Time) Interval {
	return MonthInterval(now.Year(), now.Month(), now.Location())
}

// Contains reports whether t falls in [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Label renders the interval as MM/YYYY when it is a whole month.
func (i Interval) Label() string {
	if i.Start.Day() == 1 && i.End.Equal(i.Start.AddDate(0, 1, 0)) {
		return fmt.Sprintf("%02d/%d", int(i.Start.Month()), i.Start.Year())
	}
	return fmt.Sprintf("%s a %s", i.Start.Format("02/01/2006"), i.End.AddDate(0, 0, -1).Format("02/01/2006"))
}
