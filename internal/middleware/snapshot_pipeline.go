package middleware

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
	applogger "Pace/pkg/logger"
	"Pace/pkg/util"
)

// SnapshotPipeline sits between the refresh coordinator and a snapshot
// publisher. Offer never blocks; a background loop publishes with retries.
type SnapshotPipeline struct {
	pub         domrepo.SnapshotPublisher
	metrics     domrepo.Metrics
	l           *applogger.Logger
	bufSize     int
	settledOnly bool
	maxTries    uint
	backoffMin  time.Duration
	backoffMax  time.Duration

	bufCh chan models.DashboardState

	mu       sync.Mutex
	started  bool
	last     *models.DashboardState
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type PipelineOption func(*SnapshotPipeline)

// WithBufferSize sets how many snapshots may wait for the publisher.
func WithBufferSize(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithSettledOnly drops snapshots taken while a refresh is in flight.
func WithSettledOnly(enabled bool) PipelineOption {
	return func(p *SnapshotPipeline) { p.settledOnly = enabled }
}

// WithRetry bounds publish attempts per snapshot and the wait between them.
func WithRetry(maxTries uint, min, max time.Duration) PipelineOption {
	return func(p *SnapshotPipeline) {
		if maxTries > 0 {
			p.maxTries = maxTries
		}
		if min > 0 {
			p.backoffMin = min
		}
		if max > 0 {
			p.backoffMax = max
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *SnapshotPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

func NewSnapshotPipeline(pub domrepo.SnapshotPublisher, metrics domrepo.Metrics, opts ...PipelineOption) *SnapshotPipeline {
	p := &SnapshotPipeline{
		pub:         pub,
		metrics:     metrics,
		l:           applogger.Nop(),
		bufSize:     64,
		settledOnly: true,
		maxTries:    5,
		backoffMin:  50 * time.Millisecond,
		backoffMax:  2 * time.Second,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.DashboardState, p.bufSize)
	return p
}

// Offer enqueues s for publishing. It is safe to use as a coordinator observer.
func (p *SnapshotPipeline) Offer(s models.DashboardState) {
	if p.settledOnly && s.IsLoading {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != nil && reflect.DeepEqual(*p.last, s) {
		return
	}

	// last only tracks enqueued snapshots, so a dropped one can be offered again.
	select {
	case p.bufCh <- s:
		p.last = &s
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

// Start launches the publish loop. ctx bounds every publish attempt.
func (p *SnapshotPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.wg.Add(1)
	go p.loop(ctx)
}

func (p *SnapshotPipeline) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case s := <-p.bufCh:
			p.publish(ctx, s)
		}
	}
}

func (p *SnapshotPipeline) publish(ctx context.Context, s models.DashboardState) {
	start := time.Now()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.backoffMin
	b.MaxInterval = p.backoffMax

	// stop retrying as soon as Stop is called
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, p.pub.Publish(ctx, s)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.maxTries))
	if err != nil {
		p.metrics.RecordError("pipeline_publish")
		p.l.Error("snapshot publish failed",
			applogger.String("date", s.SelectedDate.Format(util.DateLayout)),
			applogger.Error(err),
		)
		return
	}
	p.metrics.RecordLatency("pipeline_publish", time.Since(start).Seconds())
}

// Stop ends the publish loop and waits for it. Queued snapshots are dropped.
func (p *SnapshotPipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}
