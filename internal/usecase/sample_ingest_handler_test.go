package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Pace/internal/domain/models"
	"Pace/pkg/metrics"
)

type memStore struct {
	mu      sync.Mutex
	samples []models.StepSample
	err     error
}

func (s *memStore) StoreBatch(_ context.Context, samples []models.StepSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.samples = append(s.samples, samples...)
	return nil
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

type recordingInvalidator struct{ days []time.Time }

func (r *recordingInvalidator) InvalidateDays(_ context.Context, days []time.Time) error {
	r.days = append(r.days, days...)
	return nil
}

type recordingRefresher struct {
	calls  int
	result bool
}

func (r *recordingRefresher) RefreshIfAffected([]time.Time) bool {
	r.calls++
	return r.result
}

func TestSampleIngestStoresBatch(t *testing.T) {
	clock := testClock()
	store := &memStore{}
	inv := &recordingInvalidator{}
	ref := &recordingRefresher{result: true}
	h := NewSampleIngestHandler("pace.samples", store, clock, metrics.Nop{}, nil).
		WithInvalidator(inv).
		WithRefresher(ref)

	msg := `{"samples":[
		{"ts":"2026-10-18T09:15:00Z","steps":120,"distance_m":90.5,"source":"watch"},
		{"ts":"2026-10-17T22:00:00Z","steps":40,"distance_m":30},
		{"ts":"2026-10-18T09:16:00Z","steps":-3,"distance_m":1}
	]}`
	require.NoError(t, h.Handle(context.Background(), []byte(msg)))

	require.Len(t, store.samples, 2)
	assert.Equal(t, 120, store.samples[0].Steps)
	assert.Equal(t, "watch", store.samples[0].Source)
	assert.Equal(t, []time.Time{at(clock.Now().AddDate(0, 0, -1), 0), at(clock.Now(), 0)}, inv.days)
	assert.Equal(t, 1, ref.calls)
	assert.Equal(t, "pace.samples", h.Topic())
}

func TestSampleIngestSingleSampleAndList(t *testing.T) {
	store := &memStore{}
	h := NewSampleIngestHandler("t", store, testClock(), metrics.Nop{}, nil)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"ts":"2026-10-18T10:00:00Z","steps":7,"distance_m":5}`)))
	require.NoError(t, h.Handle(context.Background(), []byte(`[{"ts":"2026-10-18T11:00:00Z","steps":8,"distance_m":6}]`)))
	require.Len(t, store.samples, 2)
	assert.Equal(t, 8, store.samples[1].Steps)
}

func TestSampleIngestMalformedIsPermanent(t *testing.T) {
	h := NewSampleIngestHandler("t", &memStore{}, testClock(), metrics.Nop{}, nil)

	err := h.Handle(context.Background(), []byte(`{"samples":`))
	require.Error(t, err)
	var perm *backoff.PermanentError
	assert.ErrorAs(t, err, &perm)
}

func TestSampleIngestStoreErrorIsRetryable(t *testing.T) {
	ref := &recordingRefresher{}
	store := &memStore{err: errors.New("clickhouse down")}
	h := NewSampleIngestHandler("t", store, testClock(), metrics.Nop{}, nil).WithRefresher(ref)

	err := h.Handle(context.Background(), []byte(`{"ts":"2026-10-18T10:00:00Z","steps":7,"distance_m":5}`))
	require.Error(t, err)
	var perm *backoff.PermanentError
	assert.False(t, errors.As(err, &perm))
	assert.Zero(t, ref.calls)
}

func TestSampleIngestRefreshesCoordinator(t *testing.T) {
	clock := testClock()
	p := newFakeProvider()
	c := newCoordinator(t, p, clock)
	_, err := waitTicket(t, c.Refresh(clock.Now()))
	require.NoError(t, err)
	g := c.Generation()

	h := NewSampleIngestHandler("t", &memStore{}, clock, metrics.Nop{}, nil).WithRefresher(c)
	require.NoError(t, h.Handle(context.Background(), []byte(`{"ts":"2026-10-18T13:00:00Z","steps":7,"distance_m":5}`)))
	assert.Equal(t, g+1, c.Generation())

	require.NoError(t, h.Handle(context.Background(), []byte(`{"ts":"2026-09-01T13:00:00Z","steps":7,"distance_m":5}`)))
	assert.Equal(t, g+1, c.Generation())
}
