package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
	applogger "Pace/pkg/logger"
	"Pace/pkg/metrics"
	"Pace/pkg/util"
)

var ErrCoordinatorClosed = errors.New("refresh coordinator closed")

// Fetcher produces the data for one refresh.
type Fetcher interface {
	FetchAll(ctx context.Context, date time.Time) (models.MetricResult, error)
}

// Observer receives every published snapshot. It runs while the coordinator
// holds its state lock, so it must not block or call back into the coordinator.
type Observer func(models.DashboardState)

type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeFailed     Outcome = "failed"
	OutcomeSuperseded Outcome = "superseded"
)

// RefreshTicket tracks one issued refresh.
type RefreshTicket struct {
	Generation uint64
	Date       time.Time

	done    chan struct{}
	outcome Outcome
	err     error
}

func newTicket(g uint64, date time.Time) *RefreshTicket {
	return &RefreshTicket{Generation: g, Date: date, done: make(chan struct{})}
}

func (t *RefreshTicket) resolve(o Outcome, err error) {
	t.outcome = o
	t.err = err
	close(t.done)
}

// Done is closed once the refresh has been committed, failed, or discarded.
func (t *RefreshTicket) Done() <-chan struct{} { return t.done }

// Wait blocks until the refresh resolves. The error is the fetch error of a failed refresh.
func (t *RefreshTicket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RefreshCoordinator owns the DashboardState. Refreshes run concurrently; a
// result commits only if its generation is still the latest one issued.
type RefreshCoordinator struct {
	fetcher          Fetcher
	provider         domrepo.HealthDataProvider
	clock            util.Clock
	metrics          domrepo.Metrics
	l                *applogger.Logger
	cancelSuperseded bool
	windowDays       int

	generation atomic.Uint64

	mu             sync.Mutex
	state          models.DashboardState
	committed      uint64
	observers      map[uint64]Observer
	nextObserverID uint64
	inflightCancel context.CancelFunc
	// dirty asks for one more refresh once the latest generation resolves.
	dirty  bool
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type CoordinatorOption func(*RefreshCoordinator)

// WithCancelSuperseded cancels the in-flight fetch when a newer refresh is issued.
func WithCancelSuperseded(enabled bool) CoordinatorOption {
	return func(c *RefreshCoordinator) {
		c.cancelSuperseded = enabled
	}
}

func WithCoordinatorMetrics(m domrepo.Metrics) CoordinatorOption {
	return func(c *RefreshCoordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithCoordinatorLogger(l *applogger.Logger) CoordinatorOption {
	return func(c *RefreshCoordinator) {
		if l != nil {
			c.l = l
		}
	}
}

func NewRefreshCoordinator(fetcher Fetcher, provider domrepo.HealthDataProvider, clock util.Clock, opts ...CoordinatorOption) *RefreshCoordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &RefreshCoordinator{
		fetcher:   fetcher,
		provider:  provider,
		clock:     clock,
		metrics:   metrics.Nop{},
		l:         applogger.Nop(),
		state:     models.NewDashboardState(clock.Now()),
		observers: make(map[uint64]Observer),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.windowDays = DefaultWindowDays
	if w, ok := fetcher.(interface{ WindowDays() int }); ok && w.WindowDays() > 0 {
		c.windowDays = w.WindowDays()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize requests provider authorization when missing, then refreshes today.
// A denied authorization is logged and the refresh still runs.
func (c *RefreshCoordinator) Initialize(ctx context.Context) *RefreshTicket {
	return c.InitializeAt(ctx, c.clock.Now())
}

// InitializeAt is Initialize for an arbitrary first selection.
func (c *RefreshCoordinator) InitializeAt(ctx context.Context, date time.Time) *RefreshTicket {
	if !c.provider.IsAuthorized(ctx) {
		if err := c.provider.RequestAuthorization(ctx); err != nil {
			c.metrics.RecordError("authorization")
			c.l.Warn("health data authorization not granted", applogger.Error(err))
		} else {
			c.l.Info("health data authorization granted")
		}
	}
	return c.Refresh(date)
}

// Refresh selects date (zero keeps the current selection), marks the state as
// loading, and fetches in the background.
func (c *RefreshCoordinator) Refresh(date time.Time) *RefreshTicket {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		t := newTicket(0, date)
		t.resolve(OutcomeFailed, ErrCoordinatorClosed)
		return t
	}

	g := c.generation.Add(1)
	if date.IsZero() {
		date = c.state.SelectedDate
	}
	date = util.StartOfDay(date.In(c.clock.Location()))
	c.state.SelectedDate = date
	c.state.IsLoading = true
	c.notifyLocked()

	fetchCtx, cancel := c.ctx, context.CancelFunc(nil)
	if c.cancelSuperseded {
		if c.inflightCancel != nil {
			c.inflightCancel()
		}
		fetchCtx, cancel = context.WithCancel(c.ctx)
		c.inflightCancel = cancel
	}
	c.wg.Add(1)
	c.mu.Unlock()

	t := newTicket(g, date)
	go c.run(fetchCtx, cancel, t)
	return t
}

// RefreshIfAffected refreshes the current selection when days include the
// selected day or fall inside the trailing window. While a refresh is loading,
// requests collapse into one follow-up issued once the latest generation
// resolves. It reports whether a refresh was issued or scheduled.
func (c *RefreshCoordinator) RefreshIfAffected(days []time.Time) bool {
	now := c.clock.Now()
	window := models.WindowEnding(now, c.windowDays)

	c.mu.Lock()
	selected := c.state.SelectedDate
	affected := false
	for _, d := range days {
		d = d.In(now.Location())
		if util.SameDay(d, selected) || window.Contains(d) {
			affected = true
			break
		}
	}
	if !affected || c.closed {
		c.mu.Unlock()
		return false
	}
	if c.state.IsLoading {
		c.dirty = true
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	c.Refresh(time.Time{})
	return true
}

func (c *RefreshCoordinator) run(ctx context.Context, cancel context.CancelFunc, t *RefreshTicket) {
	defer c.wg.Done()
	if cancel != nil {
		defer cancel()
	}

	res, err := c.fetcher.FetchAll(ctx, t.Date)
	o, followUp := c.commit(t, res, err)
	t.resolve(o, err)
	if followUp {
		c.Refresh(time.Time{})
	}
}

// commit applies the result of t if it is still the latest generation. It
// reports whether a coalesced follow-up refresh is owed.
func (c *RefreshCoordinator) commit(t *RefreshTicket, res models.MetricResult, err error) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return OutcomeSuperseded, false
	}
	if latest := c.generation.Load(); t.Generation != latest {
		c.metrics.RecordRefresh(string(OutcomeSuperseded))
		c.l.Debug("discarding superseded refresh",
			applogger.Uint64("generation", t.Generation),
			applogger.Uint64("latest", latest),
			applogger.String("date", t.Date.Format(util.DateLayout)),
		)
		return OutcomeSuperseded, false
	}

	c.state.IsLoading = false
	followUp := c.dirty
	c.dirty = false
	if err != nil {
		c.metrics.RecordRefresh(string(OutcomeFailed))
		fields := []applogger.Field{
			applogger.Uint64("generation", t.Generation),
			applogger.String("date", t.Date.Format(util.DateLayout)),
			applogger.Error(err),
		}
		var fe *models.FetchError
		if errors.As(err, &fe) {
			failed := make([]string, 0, len(fe.Failed))
			for _, m := range fe.FailedMetrics() {
				failed = append(failed, string(m))
			}
			fields = append(fields, applogger.Strings("failed", failed))
		}
		c.l.Error("dashboard refresh failed, keeping previous data", fields...)
		c.notifyLocked()
		return OutcomeFailed, followUp
	}

	c.state.Apply(res)
	c.committed = t.Generation
	c.metrics.RecordRefresh(string(OutcomeCommitted))
	c.notifyLocked()
	return OutcomeCommitted, followUp
}

// State returns a snapshot of the current dashboard state.
func (c *RefreshCoordinator) State() models.DashboardState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// StateWithGeneration returns a snapshot together with the generation whose
// fetch produced its data. Zero means nothing has committed yet.
func (c *RefreshCoordinator) StateWithGeneration() (models.DashboardState, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone(), c.committed
}

// Generation returns the latest issued generation token.
func (c *RefreshCoordinator) Generation() uint64 {
	return c.generation.Load()
}

// Subscribe registers obs and immediately delivers the current snapshot to it.
func (c *RefreshCoordinator) Subscribe(obs Observer) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextObserverID
	c.nextObserverID++
	c.observers[id] = obs
	obs(c.state.Clone())

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

func (c *RefreshCoordinator) notifyLocked() {
	for _, obs := range c.observers {
		obs(c.state.Clone())
	}
}

// Close cancels in-flight fetches and waits for them to resolve.
func (c *RefreshCoordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.observers = make(map[uint64]Observer)
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight refreshes: %w", ctx.Err())
	}
}
