package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
	applogger "Pace/pkg/logger"
	"Pace/pkg/metrics"
	"Pace/pkg/util"
)

const DefaultWindowDays = 7

// MetricAggregator runs the four dashboard queries for one date concurrently
// and joins them into a single MetricResult. Any failed query fails the whole fetch.
type MetricAggregator struct {
	provider   domrepo.HealthDataProvider
	clock      util.Clock
	windowDays int
	timeout    time.Duration
	metrics    domrepo.Metrics
	l          *applogger.Logger
}

type AggregatorOption func(*MetricAggregator)

// WithWindowDays sets the length of the trailing daily series.
func WithWindowDays(n int) AggregatorOption {
	return func(a *MetricAggregator) {
		if n > 0 {
			a.windowDays = n
		}
	}
}

// WithFetchTimeout bounds one FetchAll; a query still running at the deadline fails as unavailable.
func WithFetchTimeout(d time.Duration) AggregatorOption {
	return func(a *MetricAggregator) {
		a.timeout = d
	}
}

func WithAggregatorMetrics(m domrepo.Metrics) AggregatorOption {
	return func(a *MetricAggregator) {
		if m != nil {
			a.metrics = m
		}
	}
}

func WithAggregatorLogger(l *applogger.Logger) AggregatorOption {
	return func(a *MetricAggregator) {
		if l != nil {
			a.l = l
		}
	}
}

func NewMetricAggregator(provider domrepo.HealthDataProvider, clock util.Clock, opts ...AggregatorOption) *MetricAggregator {
	a := &MetricAggregator{
		provider:   provider,
		clock:      clock,
		windowDays: DefaultWindowDays,
		metrics:    metrics.Nop{},
		l:          applogger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *MetricAggregator) WindowDays() int { return a.windowDays }

// Ranges returns the selected-day range for date and the trailing window ending today.
func (a *MetricAggregator) Ranges(date time.Time) (day, window models.TimeRange) {
	loc := a.clock.Location()
	day = models.DayRange(date.In(loc))
	window = models.WindowEnding(a.clock.Now().In(loc), a.windowDays)
	return day, window
}

// FetchAll queries steps, distance, and hourly buckets for date's day plus the
// daily totals of the window ending today. On failure it returns *models.FetchError.
func (a *MetricAggregator) FetchAll(ctx context.Context, date time.Time) (models.MetricResult, error) {
	start := time.Now()
	defer func() { a.metrics.RecordLatency("fetch_all", time.Since(start).Seconds()) }()

	day, window := a.Ranges(date)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	type item struct {
		metric models.Metric
		val    interface{}
		err    error
	}
	ch := make(chan item, len(models.AllMetrics))
	var wg sync.WaitGroup

	run := func(m models.Metric, query func() (interface{}, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					ch <- item{m, nil, fmt.Errorf("panic: %v", r)}
				}
			}()
			v, err := query()
			ch <- item{m, v, err}
		}()
	}

	run(models.MetricSteps, func() (interface{}, error) { return a.provider.TotalSteps(ctx, day) })
	run(models.MetricDistance, func() (interface{}, error) { return a.provider.TotalDistanceMeters(ctx, day) })
	run(models.MetricHourly, func() (interface{}, error) { return a.provider.HourlyStepBuckets(ctx, day) })
	run(models.MetricDaily, func() (interface{}, error) { return a.provider.DailyStepTotals(ctx, window) })

	go func() { wg.Wait(); close(ch) }()

	res := models.MetricResult{Date: day.Start}
	failed := make(map[models.Metric]error)
	for it := range ch {
		if it.err != nil {
			failed[it.metric] = a.normalize(ctx, it.metric, it.err)
			continue
		}
		switch it.metric {
		case models.MetricSteps:
			res.Steps = max(it.val.(int), 0)
		case models.MetricDistance:
			res.DistanceMeters = sanitizeMeters(it.val.(float64))
		case models.MetricHourly:
			res.Hourly = fillHourly(day, it.val.([]models.StepPoint))
		case models.MetricDaily:
			res.Daily = fillDaily(window, a.windowDays, it.val.([]models.StepPoint))
		}
	}

	if len(failed) > 0 {
		return models.MetricResult{}, &models.FetchError{Date: day.Start, Failed: failed}
	}
	return res, nil
}

// normalize maps any query error onto a *models.ProviderError.
func (a *MetricAggregator) normalize(ctx context.Context, m models.Metric, err error) error {
	var pe *models.ProviderError
	if !errors.As(err, &pe) {
		kind := models.KindQueryFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			kind = models.KindUnavailable
		}
		pe = models.NewProviderError(kind, string(m), err)
		err = pe
	}
	a.metrics.RecordQueryError(string(m), string(pe.Kind))
	a.l.Debug("provider query failed",
		applogger.String("metric", string(m)),
		applogger.String("kind", string(pe.Kind)),
		applogger.Error(err),
	)
	return err
}

func sanitizeMeters(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// fillHourly returns one point per hour of day; hours the provider omitted are zero.
// Points outside the day are dropped.
func fillHourly(day models.TimeRange, points []models.StepPoint) []models.StepPoint {
	hours := util.HourStarts(day.Start, day.End)
	out := make([]models.StepPoint, len(hours))
	for i, h := range hours {
		out[i] = models.StepPoint{Start: h}
	}
	for _, p := range points {
		if !day.Contains(p.Start) {
			continue
		}
		idx := int(p.Start.Sub(day.Start) / time.Hour)
		if idx < len(out) {
			out[idx].Steps += max(p.Steps, 0)
		}
	}
	return out
}

// fillDaily returns exactly n chronological day points covering window; missing days are zero.
func fillDaily(window models.TimeRange, n int, points []models.StepPoint) []models.StepPoint {
	loc := window.Start.Location()
	days := util.DayStarts(window.Start, n)
	out := make([]models.StepPoint, len(days))
	index := make(map[string]int, len(days))
	for i, d := range days {
		out[i] = models.StepPoint{Start: d}
		index[util.DayKey(d, loc)] = i
	}
	for _, p := range points {
		if !window.Contains(p.Start) {
			continue
		}
		if i, ok := index[util.DayKey(p.Start, loc)]; ok {
			out[i].Steps += max(p.Steps, 0)
		}
	}
	return out
}
