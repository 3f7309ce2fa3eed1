package models

import (
	"time"

	"Pace/pkg/util"
)

type ChartPoint struct {
	Start time.Time `json:"start"`
	Label string    `json:"label"`
	Steps int       `json:"steps"`
}

// DashboardView is the presentation model derived from a DashboardState.
type DashboardView struct {
	SelectedDate     string       `json:"selected_date"`
	SelectedDayLabel string       `json:"selected_day_label"`
	Steps            int          `json:"steps"`
	Goal             int          `json:"goal"`
	Progress         float64      `json:"progress"`
	DistanceMeters   float64      `json:"distance_meters"`
	Distance         string       `json:"distance"`
	Unit             DistanceUnit `json:"unit"`
	UnitName         string       `json:"unit_name"`
	Hourly           []ChartPoint `json:"hourly"`
	Daily            []ChartPoint `json:"daily"`
	IsLoading        bool         `json:"is_loading"`
}

func NewDashboardView(s DashboardState, goal int, unit DistanceUnit) DashboardView {
	return DashboardView{
		SelectedDate:     s.SelectedDate.Format(util.DateLayout),
		SelectedDayLabel: s.SelectedDayLabel(),
		Steps:            s.StepsToday,
		Goal:             goal,
		Progress:         s.ProgressFraction(goal),
		DistanceMeters:   s.DistanceTodayMeters,
		Distance:         s.DistanceString(unit),
		Unit:             unit,
		UnitName:         unit.DisplayName(),
		Hourly:           chartPoints(s.HourlySeries, "15:04"),
		Daily:            chartPoints(s.DailySeries, "Mon 01-02"),
		IsLoading:        s.IsLoading,
	}
}

func chartPoints(series []StepPoint, layout string) []ChartPoint {
	out := make([]ChartPoint, len(series))
	for i, p := range series {
		out[i] = ChartPoint{Start: p.Start, Label: p.Start.Format(layout), Steps: p.Steps}
	}
	return out
}

// DayOption is one entry of the trailing-days scroller.
type DayOption struct {
	Date     string `json:"date"`
	Weekday  string `json:"weekday"`
	Steps    int    `json:"steps"`
	Selected bool   `json:"selected"`
}

func NewDayOptions(s DashboardState) []DayOption {
	out := make([]DayOption, len(s.DailySeries))
	for i, p := range s.DailySeries {
		out[i] = DayOption{
			Date:     p.Start.Format(util.DateLayout),
			Weekday:  p.Start.Weekday().String()[:3],
			Steps:    p.Steps,
			Selected: util.SameDay(p.Start, s.SelectedDate),
		}
	}
	return out
}
