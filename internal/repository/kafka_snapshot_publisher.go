package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
	pkgkafka "Pace/pkg/kafka"
	"Pace/pkg/util"
)

// SnapshotEvent is the wire form of a committed dashboard snapshot.
type SnapshotEvent struct {
	EventID        string          `json:"event_id"`
	PublishedAt    time.Time       `json:"published_at"`
	SelectedDate   string          `json:"selected_date"`
	Steps          int             `json:"steps"`
	DistanceMeters float64         `json:"distance_m"`
	Hourly         []SnapshotPoint `json:"hourly"`
	Daily          []SnapshotPoint `json:"daily"`
	IsLoading      bool            `json:"is_loading"`
}

type SnapshotPoint struct {
	Start time.Time `json:"start"`
	Steps int       `json:"steps"`
}

func NewSnapshotEvent(s models.DashboardState, now time.Time) SnapshotEvent {
	return SnapshotEvent{
		EventID:        uuid.NewString(),
		PublishedAt:    now.UTC(),
		SelectedDate:   s.SelectedDate.Format(util.DateLayout),
		Steps:          s.StepsToday,
		DistanceMeters: s.DistanceTodayMeters,
		Hourly:         toSnapshotPoints(s.HourlySeries),
		Daily:          toSnapshotPoints(s.DailySeries),
		IsLoading:      s.IsLoading,
	}
}

func toSnapshotPoints(pts []models.StepPoint) []SnapshotPoint {
	out := make([]SnapshotPoint, len(pts))
	for i, p := range pts {
		out[i] = SnapshotPoint{Start: p.Start, Steps: p.Steps}
	}
	return out
}

// KafkaSnapshotPublisher publishes snapshots keyed by selected date, so all
// versions of one day land on the same partition in order.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) Publish(ctx context.Context, s models.DashboardState) error {
	ev := NewSnapshotEvent(s, time.Now())
	return p.producer.Publish(ctx, p.topic, []byte(ev.SelectedDate), ev)
}

// Close is a no-op; the producer is shared with the log collector and closed by its owner.
func (p *KafkaSnapshotPublisher) Close() error { return nil }

var _ domrepo.SnapshotPublisher = (*KafkaSnapshotPublisher)(nil)
