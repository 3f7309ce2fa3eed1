package util

import (
	"strconv"
	"time"
)

const DateLayout = "2006-01-02"

// StartOfDay returns local midnight of t's calendar day, in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the start of the following calendar day. Day ranges are half-open.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// HourStarts returns the start of every hour bucket in [start, end).
// DST transition days yield 23 or 25 buckets.
func HourStarts(start, end time.Time) []time.Time {
	if !end.After(start) {
		return nil
	}
	n := int((end.Sub(start) + time.Hour - 1) / time.Hour)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

// DayStarts returns n consecutive calendar-day starts beginning at start.
func DayStarts(start time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	first := StartOfDay(start)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = first.AddDate(0, 0, i)
	}
	return out
}

// DayKey formats t as a calendar date in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// ParseDate tries YYYY-MM-DD (in loc), RFC3339, RFC3339Nano, and unix seconds.
// Returns (t, true) if any worked.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).In(loc), true
	}
	return time.Time{}, false
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, loc *time.Location, def time.Time) time.Time {
	if t, ok := ParseDate(s, loc); ok {
		return t
	}
	return def
}
