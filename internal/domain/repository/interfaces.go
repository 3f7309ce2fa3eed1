package repository

import (
	"context"
	"time"

	"Pace/internal/domain/models"
)

// HealthDataProvider is the external health-data subsystem. Every query is a
// side-effect-free read that fails with *models.ProviderError.
type HealthDataProvider interface {
	TotalSteps(ctx context.Context, r models.TimeRange) (int, error)
	TotalDistanceMeters(ctx context.Context, r models.TimeRange) (float64, error)
	HourlyStepBuckets(ctx context.Context, day models.TimeRange) ([]models.StepPoint, error)
	DailyStepTotals(ctx context.Context, window models.TimeRange) ([]models.StepPoint, error)
	IsAuthorized(ctx context.Context) bool
	RequestAuthorization(ctx context.Context) error
}

// SampleStore persists raw step samples that back the ClickHouse provider.
type SampleStore interface {
	StoreBatch(ctx context.Context, samples []models.StepSample) error
	Health(ctx context.Context) error
	Close() error
}

type SnapshotPublisher interface {
	Publish(ctx context.Context, s models.DashboardState) error
	Close() error
}

type Metrics interface {
	RecordRefresh(outcome string)
	RecordQueryError(metric, kind string)
	RecordLatency(op string, seconds float64)
	RecordSamplesIngested(n int)
	RecordError(kind string)
}

// Refresher is the part of the coordinator ingest needs.
type Refresher interface {
	RefreshIfAffected(days []time.Time) bool
}

// DayInvalidator drops cached query results for the given days.
type DayInvalidator interface {
	InvalidateDays(ctx context.Context, days []time.Time) error
}
