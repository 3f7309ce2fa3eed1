package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Pace/internal/domain/models"
	"Pace/internal/service/ratelimit"
	"Pace/internal/usecase"
	"Pace/pkg/util"
)

// stubProvider reports the same totals for every day.
type stubProvider struct {
	mu      sync.Mutex
	steps   int
	err     error
	block   chan struct{}
	waiting atomic.Int32
}

func (p *stubProvider) get() (int, chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steps, p.block, p.err
}

func (p *stubProvider) TotalSteps(ctx context.Context, _ models.TimeRange) (int, error) {
	steps, block, err := p.get()
	if block != nil {
		p.waiting.Add(1)
		defer p.waiting.Add(-1)
		select {
		case <-block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return steps, err
}

func (p *stubProvider) TotalDistanceMeters(context.Context, models.TimeRange) (float64, error) {
	return 1609.34, nil
}

func (p *stubProvider) HourlyStepBuckets(_ context.Context, day models.TimeRange) ([]models.StepPoint, error) {
	steps, _, _ := p.get()
	return []models.StepPoint{{Start: day.Start.Add(9 * time.Hour), Steps: steps}}, nil
}

func (p *stubProvider) DailyStepTotals(context.Context, models.TimeRange) ([]models.StepPoint, error) {
	return nil, nil
}

func (p *stubProvider) IsAuthorized(context.Context) bool          { return true }
func (p *stubProvider) RequestAuthorization(context.Context) error { return nil }

type fixture struct {
	e     *echo.Echo
	coord *usecase.RefreshCoordinator
	prov  *stubProvider
	h     *DashboardEchoHandler
}

func newFixture(t *testing.T, limiter *ratelimit.Limiter) *fixture {
	t.Helper()
	clock := util.NewFixedClock(time.Date(2026, 10, 18, 14, 0, 0, 0, time.UTC))
	prov := &stubProvider{steps: 4000}
	coord := usecase.NewRefreshCoordinator(usecase.NewMetricAggregator(prov, clock), prov, clock)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = coord.Close(ctx)
	})

	h := NewDashboardEchoHandler(nil, coord, Defaults{Goal: 8000, Unit: models.UnitMetric, Location: time.UTC}, limiter)
	e := echo.New()
	h.RegisterRoutes(e)
	return &fixture{e: e, coord: coord, prov: prov, h: h}
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

type envelope[T any] struct {
	Status int `json:"status"`
	Data   T   `json:"data"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

func TestRefreshWaitReturnsCommittedView(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/dashboard/refresh?wait=true&date=2026-10-17&unit=imperial")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[models.RefreshResponse](t, rec)
	assert.Equal(t, "committed", res.Outcome)
	assert.Equal(t, uint64(1), res.Generation)
	assert.Equal(t, uint64(1), res.DataGeneration)
	assert.Equal(t, "2026-10-17", res.Dashboard.SelectedDate)
	assert.Equal(t, 4000, res.Dashboard.Steps)
	assert.Equal(t, 0.5, res.Dashboard.Progress)
	assert.Equal(t, "1.00 mi", res.Dashboard.Distance)
	assert.Len(t, res.Dashboard.Hourly, 24)
	assert.Equal(t, "09:00", res.Dashboard.Hourly[9].Label)
	assert.Len(t, res.Dashboard.Daily, 7)
	assert.False(t, res.Dashboard.IsLoading)
}

func TestRefreshWaitReportsWhichGenerationIsShown(t *testing.T) {
	f := newFixture(t, nil)
	block := make(chan struct{})
	f.prov.mu.Lock()
	f.prov.block = block
	f.prov.mu.Unlock()

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- f.do(http.MethodPost, "/api/dashboard/refresh?wait=true&date=2026-10-17") }()
	require.Eventually(t, func() bool { return f.prov.waiting.Load() == 1 }, time.Second, 5*time.Millisecond)

	// a newer refresh commits while the first is still fetching
	f.prov.mu.Lock()
	f.prov.block = nil
	f.prov.steps = 6000
	f.prov.mu.Unlock()
	o, err := f.coord.Refresh(time.Time{}).Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, usecase.OutcomeCommitted, o)
	close(block)

	rec := <-done
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[models.RefreshResponse](t, rec)
	assert.Equal(t, "superseded", res.Outcome)
	assert.Equal(t, uint64(1), res.Generation)
	assert.Equal(t, uint64(2), res.LatestGeneration)
	assert.Equal(t, uint64(2), res.DataGeneration)
	assert.Equal(t, 6000, res.Dashboard.Steps)
}

func TestRefreshWithoutWaitIsAccepted(t *testing.T) {
	f := newFixture(t, nil)
	f.prov.block = make(chan struct{})
	defer close(f.prov.block)

	rec := f.do(http.MethodPost, "/api/dashboard/refresh")
	require.Equal(t, http.StatusAccepted, rec.Code)
	res := decode[models.RefreshResponse](t, rec)
	assert.Empty(t, res.Outcome)
	assert.True(t, res.Dashboard.IsLoading)
	assert.Equal(t, "2026-10-18", res.Dashboard.SelectedDate)
}

func TestRefreshWaitTimesOut(t *testing.T) {
	f := newFixture(t, nil)
	f.prov.block = make(chan struct{})
	defer close(f.prov.block)

	rec := f.do(http.MethodPost, "/api/dashboard/refresh?wait=true&timeout_ms=20")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestRefreshFailureIsServiceUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.prov.err = errors.New("provider down")

	rec := f.do(http.MethodPost, "/api/dashboard/refresh?wait=true")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failed":["steps"]`)
	assert.False(t, f.coord.State().IsLoading)
}

func TestRefreshValidation(t *testing.T) {
	f := newFixture(t, nil)

	for _, target := range []string{
		"/api/dashboard/refresh?date=18-10-2026",
		"/api/dashboard/refresh?unit=furlongs",
		"/api/dashboard/refresh?goal=-5",
	} {
		rec := f.do(http.MethodPost, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Zero(t, f.coord.Generation())
}

func TestRefreshRateLimited(t *testing.T) {
	f := newFixture(t, ratelimit.New(1, 0.0001))

	rec := f.do(http.MethodPost, "/api/dashboard/refresh?wait=true")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodPost, "/api/dashboard/refresh?wait=true")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGetAndDays(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := f.coord.Refresh(time.Time{}).Wait(ctx)
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/dashboard?goal=2000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get(echo.HeaderCacheControl))
	view := decode[models.DashboardView](t, rec)
	assert.Equal(t, 1.0, view.Progress)
	assert.Equal(t, "1.61 km", view.Distance)
	assert.Equal(t, "Sunday\nOctober 18", view.SelectedDayLabel)

	rec = f.do(http.MethodGet, "/api/dashboard/days")
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[[]models.DayOption](t, rec)
	require.Len(t, days, 7)
	assert.True(t, days[6].Selected)
	assert.Equal(t, "Sun", days[6].Weekday)
}

func TestStreamPushesSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/dashboard/stream?unit=metric"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the current snapshot arrives first
	var view models.DashboardView
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&view))
	assert.True(t, view.IsLoading)

	f.coord.Refresh(time.Time{})
	for view.IsLoading || view.Steps == 0 {
		require.NoError(t, conn.ReadJSON(&view))
	}
	assert.Equal(t, 4000, view.Steps)
	assert.Equal(t, "metric", string(view.Unit))
}
