package models

// Requests for dashboard HTTP endpoints. A zero Goal or empty Unit falls back to the configured default.

type DashboardRequest struct {
	Goal int    `query:"goal" json:"goal" validate:"gte=0,lte=1000000"`
	Unit string `query:"unit" json:"unit" validate:"omitempty,oneof=metric imperial"`
}

type RefreshRequest struct {
	Date    string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Goal    int    `query:"goal" json:"goal" validate:"gte=0,lte=1000000"`
	Unit    string `query:"unit" json:"unit" validate:"omitempty,oneof=metric imperial"`
	Wait    bool   `query:"wait" json:"wait"`
	Timeout int    `query:"timeout_ms" json:"timeout_ms" default:"5000" validate:"gte=1,lte=60000"`
}

// RefreshResponse reports how a refresh resolved. Outcome is empty when the caller did not wait.
// Generation is the refresh that was issued; DataGeneration is the one whose
// data Dashboard shows, which differs after a superseded wait.
type RefreshResponse struct {
	Generation       uint64        `json:"generation"`
	LatestGeneration uint64        `json:"latest_generation"`
	DataGeneration   uint64        `json:"data_generation"`
	Outcome          string        `json:"outcome,omitempty"`
	Dashboard        DashboardView `json:"dashboard"`
}
