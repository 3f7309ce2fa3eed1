package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndEndOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	ts := time.Date(2026, 10, 18, 15, 4, 5, 6, loc)

	start := StartOfDay(ts)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, loc), EndOfDay(ts))
	assert.Equal(t, loc, start.Location())
}

func TestSameDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	a := time.Date(2026, 10, 18, 23, 30, 0, 0, loc)

	assert.True(t, SameDay(a, time.Date(2026, 10, 18, 0, 0, 0, 0, loc)))
	// 2026-10-19 03:00 UTC is still the 18th in UTC-5
	assert.True(t, SameDay(a, time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)))
	assert.False(t, SameDay(a, time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)))
}

func TestHourStarts(t *testing.T) {
	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	hours := HourStarts(day, EndOfDay(day))
	require.Len(t, hours, 24)
	assert.Equal(t, day, hours[0])
	assert.Equal(t, day.Add(23*time.Hour), hours[23])

	assert.Empty(t, HourStarts(day, day))
}

func TestHourStartsDSTDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// clocks go back one hour on 2026-10-25
	day := time.Date(2026, 10, 25, 0, 0, 0, 0, loc)
	assert.Len(t, HourStarts(day, EndOfDay(day)), 25)
}

func TestDayStarts(t *testing.T) {
	start := time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)
	days := DayStarts(start, 7)
	require.Len(t, days, 7)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), days[0])
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), days[6])
	assert.Nil(t, DayStarts(start, 0))
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)

	got, ok := ParseDate("2026-10-18", loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, loc), got)

	got, ok = ParseDate("2024-10-10T10:10:10Z", loc)
	require.True(t, ok)
	assert.Equal(t, "2024-10-10T10:10:10Z", got.UTC().Format(time.RFC3339))

	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok = ParseDate(strconv.FormatInt(ts, 10), loc)
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())

	_, ok = ParseDate("yesterday", loc)
	assert.False(t, ok)
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseDateDefault("", time.UTC, def).Equal(def))
}

func TestFixedClock(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	c := NewFixedClock(time.Date(2026, 10, 18, 8, 0, 0, 0, loc))
	assert.Equal(t, loc, c.Location())

	c.Set(time.Date(2026, 10, 19, 8, 0, 0, 0, loc))
	assert.Equal(t, 19, c.Now().Day())
}
