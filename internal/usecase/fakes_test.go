package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"Pace/internal/domain/models"
	"Pace/pkg/util"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProvider serves canned data. Per-day data is keyed by YYYY-MM-DD.
type fakeProvider struct {
	mu sync.Mutex

	authorized   bool
	authErr      error
	authRequests int

	steps    map[string]int
	distance map[string]float64
	hourly   map[string][]models.StepPoint
	daily    []models.StepPoint
	fail     map[models.Metric]error
	// gates block TotalSteps for a day until closed
	gates map[string]chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		authorized: true,
		steps:      map[string]int{},
		distance:   map[string]float64{},
		hourly:     map[string][]models.StepPoint{},
		fail:       map[models.Metric]error{},
		gates:      map[string]chan struct{}{},
	}
}

func dayKey(t time.Time) string { return t.Format(util.DateLayout) }

func (p *fakeProvider) failure(m models.Metric) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authorized {
		return models.NewProviderError(models.KindUnauthorized, string(m), errors.New("read access denied"))
	}
	return p.fail[m]
}

func (p *fakeProvider) setFail(m models.Metric, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[m] = err
}

func (p *fakeProvider) gate(day string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	g := make(chan struct{})
	p.gates[day] = g
	return g
}

func (p *fakeProvider) TotalSteps(ctx context.Context, r models.TimeRange) (int, error) {
	if err := p.failure(models.MetricSteps); err != nil {
		return 0, err
	}
	p.mu.Lock()
	g := p.gates[dayKey(r.Start)]
	v := p.steps[dayKey(r.Start)]
	p.mu.Unlock()
	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return v, nil
}

func (p *fakeProvider) TotalDistanceMeters(_ context.Context, r models.TimeRange) (float64, error) {
	if err := p.failure(models.MetricDistance); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.distance[dayKey(r.Start)], nil
}

func (p *fakeProvider) HourlyStepBuckets(_ context.Context, day models.TimeRange) ([]models.StepPoint, error) {
	if err := p.failure(models.MetricHourly); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.StepPoint(nil), p.hourly[dayKey(day.Start)]...), nil
}

func (p *fakeProvider) DailyStepTotals(_ context.Context, _ models.TimeRange) ([]models.StepPoint, error) {
	if err := p.failure(models.MetricDaily); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.StepPoint(nil), p.daily...), nil
}

func (p *fakeProvider) IsAuthorized(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authorized
}

func (p *fakeProvider) RequestAuthorization(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authRequests++
	if p.authErr == nil {
		p.authorized = true
	}
	return p.authErr
}

// today is Sunday 2026-10-18, 14:00 UTC.
func testClock() *util.FixedClock {
	return util.NewFixedClock(time.Date(2026, 10, 18, 14, 0, 0, 0, time.UTC))
}

func at(day time.Time, hour int) time.Time {
	return util.StartOfDay(day).Add(time.Duration(hour) * time.Hour)
}
