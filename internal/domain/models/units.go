package models

import (
	"fmt"
	"strings"
)

type DistanceUnit string

const (
	UnitMetric   DistanceUnit = "metric"
	UnitImperial DistanceUnit = "imperial"
)

const MetersPerMile = 1609.34

// ParseDistanceUnit accepts "metric"/"imperial" and the short forms "km"/"mi".
func ParseDistanceUnit(s string) (DistanceUnit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metric", "km":
		return UnitMetric, true
	case "imperial", "mi":
		return UnitImperial, true
	default:
		return UnitMetric, false
	}
}

func (u DistanceUnit) DisplayName() string {
	if u == UnitImperial {
		return "Imperial (mi)"
	}
	return "Metric (km)"
}

func (u DistanceUnit) Symbol() string {
	if u == UnitImperial {
		return "mi"
	}
	return "km"
}

// Convert turns meters into the unit's display magnitude. Unknown units are treated as metric.
func (u DistanceUnit) Convert(meters float64) float64 {
	if u == UnitImperial {
		return meters / MetersPerMile
	}
	return meters / 1000
}

func FormatDistance(meters float64, unit DistanceUnit) string {
	return fmt.Sprintf("%.2f %s", unit.Convert(meters), unit.Symbol())
}
