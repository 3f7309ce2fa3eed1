package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
	pkgkafka "Pace/pkg/kafka"
	applogger "Pace/pkg/logger"
	"Pace/pkg/util"
)

// SampleIngestHandler consumes step samples from Kafka, stores them, and
// refreshes the dashboard when they touch the selected day or today.
type SampleIngestHandler struct {
	topic       string
	store       domrepo.SampleStore
	invalidator domrepo.DayInvalidator
	refresher   domrepo.Refresher
	clock       util.Clock
	metrics     domrepo.Metrics
	l           *applogger.Logger
}

func NewSampleIngestHandler(topic string, store domrepo.SampleStore, clock util.Clock, metrics domrepo.Metrics, l *applogger.Logger) *SampleIngestHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &SampleIngestHandler{topic: topic, store: store, clock: clock, metrics: metrics, l: l}
}

// WithInvalidator drops cached results for ingested days before refreshing.
func (h *SampleIngestHandler) WithInvalidator(inv domrepo.DayInvalidator) *SampleIngestHandler {
	h.invalidator = inv
	return h
}

func (h *SampleIngestHandler) WithRefresher(r domrepo.Refresher) *SampleIngestHandler {
	h.refresher = r
	return h
}

func (h *SampleIngestHandler) Topic() string { return h.topic }

// Handle accepts either {"samples": [...]} or a single sample object.
func (h *SampleIngestHandler) Handle(ctx context.Context, b []byte) error {
	samples, err := decodeSamples(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(err)
	}

	valid := samples[:0]
	for _, s := range samples {
		if s.Valid() {
			valid = append(valid, s)
		}
	}
	if dropped := len(samples) - len(valid); dropped > 0 {
		h.metrics.RecordError("invalid_sample")
		h.l.Warn("dropping invalid step samples", applogger.Int("dropped", dropped))
	}
	if len(valid) == 0 {
		return nil
	}

	start := time.Now()
	err = h.store.StoreBatch(ctx, valid)
	h.metrics.RecordLatency("sample_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return fmt.Errorf("store samples: %w", err)
	}
	h.metrics.RecordSamplesIngested(len(valid))

	days := h.touchedDays(valid)
	if h.invalidator != nil {
		if err := h.invalidator.InvalidateDays(ctx, days); err != nil {
			h.l.Warn("cache invalidation failed", applogger.Error(err))
		}
	}
	if h.refresher != nil && h.refresher.RefreshIfAffected(days) {
		h.l.Debug("ingest triggered dashboard refresh", applogger.Int("days", len(days)))
	}
	return nil
}

func decodeSamples(b []byte) ([]models.StepSample, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	if b[0] == '[' {
		var list []models.StepSample
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, fmt.Errorf("decode sample list: %w", err)
		}
		return list, nil
	}

	var envelope struct {
		Samples json.RawMessage `json:"samples"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	if envelope.Samples != nil {
		var batch models.SampleBatch
		if err := json.Unmarshal(b, &batch); err != nil {
			return nil, fmt.Errorf("decode sample batch: %w", err)
		}
		return batch.Samples, nil
	}

	var s models.StepSample
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode sample: %w", err)
	}
	return []models.StepSample{s}, nil
}

// touchedDays returns the distinct local days of samples, oldest first.
func (h *SampleIngestHandler) touchedDays(samples []models.StepSample) []time.Time {
	loc := h.clock.Location()
	seen := make(map[string]time.Time)
	for _, s := range samples {
		d := util.StartOfDay(s.Timestamp.In(loc))
		seen[util.DayKey(d, loc)] = d
	}
	days := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

var _ pkgkafka.MessageHandler = (*SampleIngestHandler)(nil)
