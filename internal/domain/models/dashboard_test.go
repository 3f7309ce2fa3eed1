package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressFraction(t *testing.T) {
	s := DashboardState{StepsToday: 4000}

	assert.Equal(t, 0.5, s.ProgressFraction(8000))
	assert.Equal(t, 1.0, s.ProgressFraction(1000))
	assert.Equal(t, 0.0, s.ProgressFraction(0))
	assert.Equal(t, 0.0, s.ProgressFraction(-5))
	assert.Equal(t, 0.0, DashboardState{}.ProgressFraction(8000))
}

func TestDistanceString(t *testing.T) {
	s := DashboardState{DistanceTodayMeters: 3200}

	assert.Equal(t, "3.20 km", s.DistanceString(UnitMetric))
	assert.Equal(t, "1.99 mi", s.DistanceString(UnitImperial))
	assert.Equal(t, "0.00 km", DashboardState{}.DistanceString(UnitMetric))
}

func TestParseDistanceUnit(t *testing.T) {
	u, ok := ParseDistanceUnit("Imperial")
	assert.True(t, ok)
	assert.Equal(t, UnitImperial, u)
	assert.Equal(t, "Imperial (mi)", u.DisplayName())

	u, ok = ParseDistanceUnit("parsecs")
	assert.False(t, ok)
	assert.Equal(t, UnitMetric, u)
	assert.Equal(t, "Metric (km)", u.DisplayName())
}

func TestSelectedDayLabel(t *testing.T) {
	s := NewDashboardState(time.Date(2026, 10, 18, 14, 0, 0, 0, time.UTC))
	assert.Equal(t, "Sunday\nOctober 18", s.SelectedDayLabel())
	assert.True(t, s.IsLoading)
	assert.Equal(t, 0, s.SelectedDate.Hour())
}

func TestCloneIsDeep(t *testing.T) {
	s := DashboardState{HourlySeries: []StepPoint{{Steps: 1}}, DailySeries: []StepPoint{{Steps: 2}}}
	c := s.Clone()
	c.HourlySeries[0].Steps = 99
	c.DailySeries[0].Steps = 99

	assert.Equal(t, 1, s.HourlySeries[0].Steps)
	assert.Equal(t, 2, s.DailySeries[0].Steps)
}

func TestWindowEnding(t *testing.T) {
	today := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	w := WindowEnding(today, 7)

	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), w.End)
	assert.True(t, w.Contains(today))
	assert.False(t, w.Contains(w.End))
}

func TestNewDashboardView(t *testing.T) {
	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	s := DashboardState{
		SelectedDate:        day,
		StepsToday:          6000,
		DistanceTodayMeters: 4500,
		HourlySeries:        []StepPoint{{Start: day.Add(15 * time.Hour), Steps: 10}},
		DailySeries:         []StepPoint{{Start: day.AddDate(0, 0, -1), Steps: 7}, {Start: day, Steps: 6000}},
	}

	v := NewDashboardView(s, 8000, UnitMetric)
	assert.Equal(t, "2026-10-18", v.SelectedDate)
	assert.Equal(t, 0.75, v.Progress)
	assert.Equal(t, "4.50 km", v.Distance)
	require.Len(t, v.Hourly, 1)
	assert.Equal(t, "15:00", v.Hourly[0].Label)
	require.Len(t, v.Daily, 2)
	assert.Equal(t, "Sun 10-18", v.Daily[1].Label)

	days := NewDayOptions(s)
	require.Len(t, days, 2)
	assert.False(t, days[0].Selected)
	assert.True(t, days[1].Selected)
	assert.Equal(t, "Sat", days[0].Weekday)
}

func TestProviderErrorIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewProviderError(KindUnavailable, "TotalSteps", errors.New("ping failed")))

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, KindUnavailable, ProviderKind(err))
	assert.Equal(t, KindQueryFailed, ProviderKind(errors.New("boom")))
	assert.Equal(t, "TotalSteps: unavailable: ping failed", errors.Unwrap(err).Error())
}

func TestFetchError(t *testing.T) {
	fe := &FetchError{
		Date: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
		Failed: map[Metric]error{
			MetricDaily: NewProviderError(KindQueryFailed, "DailyStepTotals", nil),
			MetricSteps: ErrUnauthorized,
		},
	}

	assert.Equal(t, []Metric{MetricSteps, MetricDaily}, fe.FailedMetrics())
	assert.ErrorIs(t, fe, ErrUnauthorized)
	assert.ErrorIs(t, fe, ErrQueryFailed)
	assert.NotErrorIs(t, fe, ErrUnavailable)
	assert.Contains(t, fe.Error(), "partial failure (2/4)")
	assert.Equal(t, "partial", fe.Kind())
}
