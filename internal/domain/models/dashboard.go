package models

import (
	"math"
	"time"

	"Pace/pkg/util"
)

// StepPoint is one bucket of a step series: the bucket start and its total.
type StepPoint struct {
	Start time.Time
	Steps int
}

// DashboardState is the snapshot handed to the display layer.
// Hourly covers the selected day; Daily always ends today.
type DashboardState struct {
	SelectedDate        time.Time
	StepsToday          int
	DistanceTodayMeters float64
	HourlySeries        []StepPoint
	DailySeries         []StepPoint
	IsLoading           bool
}

// NewDashboardState returns the session's initial state: no data, loading, today selected.
func NewDashboardState(today time.Time) DashboardState {
	return DashboardState{
		SelectedDate: util.StartOfDay(today),
		IsLoading:    true,
	}
}

// Clone returns a deep copy; observers may keep it without synchronization.
func (s DashboardState) Clone() DashboardState {
	out := s
	out.HourlySeries = clonePoints(s.HourlySeries)
	out.DailySeries = clonePoints(s.DailySeries)
	return out
}

func clonePoints(p []StepPoint) []StepPoint {
	if p == nil {
		return nil
	}
	out := make([]StepPoint, len(p))
	copy(out, p)
	return out
}

// ProgressFraction returns steps/goal clamped to [0, 1]. A non-positive goal yields 0.
func (s DashboardState) ProgressFraction(goal int) float64 {
	if goal <= 0 {
		return 0
	}
	f := float64(s.StepsToday) / float64(goal)
	return math.Max(0, math.Min(1, f))
}

// DistanceString formats today's distance in unit with two decimals.
func (s DashboardState) DistanceString(unit DistanceUnit) string {
	return FormatDistance(s.DistanceTodayMeters, unit)
}

// SelectedDayLabel renders the selected date as "Monday\nOctober 18".
func (s DashboardState) SelectedDayLabel() string {
	return s.SelectedDate.Format("Monday\nJanuary 2")
}

// Apply replaces every data field with r. The selected date and loading flag are left alone.
func (s *DashboardState) Apply(r MetricResult) {
	s.StepsToday = r.Steps
	s.DistanceTodayMeters = r.DistanceMeters
	s.HourlySeries = clonePoints(r.Hourly)
	s.DailySeries = clonePoints(r.Daily)
}
