package models

import (
	"time"

	"Pace/pkg/util"
)

// TimeRange is the half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// DayRange covers the calendar day containing t, in t's location.
func DayRange(t time.Time) TimeRange {
	return TimeRange{Start: util.StartOfDay(t), End: util.EndOfDay(t)}
}

// WindowEnding covers the trailing n calendar days ending with today (inclusive).
func WindowEnding(today time.Time, n int) TimeRange {
	if n < 1 {
		n = 1
	}
	return TimeRange{
		Start: util.StartOfDay(today).AddDate(0, 0, -(n - 1)),
		End:   util.EndOfDay(today),
	}
}

// MetricResult bundles the four query outcomes of one refresh.
type MetricResult struct {
	Date           time.Time
	Steps          int
	DistanceMeters float64
	Hourly         []StepPoint
	Daily          []StepPoint
}
