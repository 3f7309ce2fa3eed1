package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
	"Pace/pkg/cache"
	applogger "Pace/pkg/logger"
	"Pace/pkg/util"
)

const cacheKeyPrefix = "day"

// CachedProvider puts a cache in front of another provider. Only whole days
// that are already over are cached; today and the trailing window always go
// to the underlying provider.
type CachedProvider struct {
	next  domrepo.HealthDataProvider
	cache cache.Service
	clock util.Clock
	ttl   time.Duration
	l     *applogger.Logger

	// epochs counts invalidations per day. A load that straddles an
	// invalidation of its day must not write its result back.
	mu     sync.RWMutex
	epochs map[string]uint64
}

func NewCachedProvider(next domrepo.HealthDataProvider, c cache.Service, clock util.Clock, ttl time.Duration, l *applogger.Logger) *CachedProvider {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachedProvider{next: next, cache: c, clock: clock, ttl: ttl, l: l, epochs: make(map[string]uint64)}
}

func (p *CachedProvider) epoch(day string) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.epochs[day]
}

// dayCacheKey is "day:YYYY-MM-DD:metric".
func dayCacheKey(day time.Time, loc *time.Location, m models.Metric) string {
	return cache.Key(cacheKeyPrefix, util.DayKey(day, loc), m)
}

// cacheable reports whether r is exactly one local day that has already ended.
func (p *CachedProvider) cacheable(r models.TimeRange) bool {
	loc := p.clock.Location()
	day := models.DayRange(r.Start.In(loc))
	if !day.Start.Equal(r.Start) || !day.End.Equal(r.End) {
		return false
	}
	return !day.End.After(util.StartOfDay(p.clock.Now().In(loc)))
}

func (p *CachedProvider) TotalSteps(ctx context.Context, r models.TimeRange) (int, error) {
	return cached(ctx, p, r, models.MetricSteps, func() (int, error) { return p.next.TotalSteps(ctx, r) })
}

func (p *CachedProvider) TotalDistanceMeters(ctx context.Context, r models.TimeRange) (float64, error) {
	return cached(ctx, p, r, models.MetricDistance, func() (float64, error) { return p.next.TotalDistanceMeters(ctx, r) })
}

func (p *CachedProvider) HourlyStepBuckets(ctx context.Context, day models.TimeRange) ([]models.StepPoint, error) {
	pts, err := cached(ctx, p, day, models.MetricHourly, func() ([]models.StepPoint, error) { return p.next.HourlyStepBuckets(ctx, day) })
	loc := p.clock.Location()
	for i := range pts {
		pts[i].Start = pts[i].Start.In(loc)
	}
	return pts, err
}

func (p *CachedProvider) DailyStepTotals(ctx context.Context, window models.TimeRange) ([]models.StepPoint, error) {
	return p.next.DailyStepTotals(ctx, window)
}

func (p *CachedProvider) IsAuthorized(ctx context.Context) bool {
	return p.next.IsAuthorized(ctx)
}

func (p *CachedProvider) RequestAuthorization(ctx context.Context) error {
	return p.next.RequestAuthorization(ctx)
}

func cached[T any](ctx context.Context, p *CachedProvider, r models.TimeRange, m models.Metric, load func() (T, error)) (T, error) {
	if !p.cacheable(r) {
		return load()
	}
	day := util.DayKey(r.Start, p.clock.Location())
	key := dayCacheKey(r.Start, p.clock.Location(), m)
	epoch := p.epoch(day)

	var v T
	err := p.cache.Get(ctx, key, &v)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		p.l.Warn("cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	v, err = load()
	if err != nil {
		return v, err
	}

	// The read lock keeps InvalidateDays from bumping the epoch between the
	// check and the write; its delete runs after the bump and clears any
	// value written before it.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.epochs[day] != epoch {
		p.l.Debug("skipping cache write for invalidated day", applogger.String("key", key))
		return v, nil
	}
	if err := p.cache.Set(ctx, key, v, p.ttl); err != nil {
		p.l.Warn("cache write failed", applogger.String("key", key), applogger.Error(err))
	}
	return v, nil
}

// InvalidateDays drops every cached metric of the given days. Loads of those
// days already in flight return their result without caching it.
func (p *CachedProvider) InvalidateDays(ctx context.Context, days []time.Time) error {
	loc := p.clock.Location()
	p.mu.Lock()
	for _, d := range days {
		p.epochs[util.DayKey(d, loc)]++
	}
	p.mu.Unlock()

	var errs error
	for _, d := range days {
		pattern := cache.Key(cacheKeyPrefix, util.DayKey(d, loc), "*")
		if err := p.cache.DeleteByPattern(ctx, pattern); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalidate %s: %w", pattern, err))
		}
	}
	return errs
}

var (
	_ domrepo.HealthDataProvider = (*CachedProvider)(nil)
	_ domrepo.DayInvalidator     = (*CachedProvider)(nil)
)
