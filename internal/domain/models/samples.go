package models

import "time"

// StepSample is a raw activity reading as recorded by a device.
type StepSample struct {
	Timestamp      time.Time `json:"ts"`
	Steps          int       `json:"steps"`
	DistanceMeters float64   `json:"distance_m"`
	Source         string    `json:"source,omitempty"`
}

func (s StepSample) Valid() bool {
	return !s.Timestamp.IsZero() && s.Steps >= 0 && s.DistanceMeters >= 0
}

type SampleBatch struct {
	Samples []StepSample `json:"samples"`
}
