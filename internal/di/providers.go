package di

import (
	"context"
	"fmt"
	"time"

	"Pace/internal/domain/models"
	domrepo "Pace/internal/domain/repository"
	"Pace/internal/handler/api"
	mid "Pace/internal/middleware"
	internalrepo "Pace/internal/repository"
	"Pace/internal/service/healthapi"
	"Pace/internal/service/ratelimit"
	"Pace/internal/usecase"
	"Pace/pkg/cache"
	pkgch "Pace/pkg/clickhouse"
	"Pace/pkg/config"
	xhttp "Pace/pkg/http"
	pkgkafka "Pace/pkg/kafka"
	applogger "Pace/pkg/logger"
	"Pace/pkg/metrics"
	"Pace/pkg/server"
	"Pace/pkg/util"
)

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

func ProvideClock(cfg *config.Config) util.Clock {
	return util.NewSystemClock(cfg.Location())
}

// ProvideMetrics registers the dashboard collectors on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

func samplesTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
}

// ProvideClickHouseClient connects when any component needs ClickHouse, else returns nil.
// The samples schema is created only when this process ingests samples; the
// session stays on "default" so that works before the database exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.NeedsClickHouse() {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.Kafka.SamplesTopic != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.SampleSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideKafkaProducer returns nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 || (cfg.Kafka.SnapshotsTopic == "" && cfg.Kafka.LogsTopic == "") {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCache builds the query cache: in-process only, or in front of Redis when enabled.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache(cache.WithMemoryDefaultTTL(cfg.Provider.CacheTTL))
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	lc := cache.NewLayeredCache(rc, cfg.Redis.L1TTL)
	return lc, func() {
		_ = lc.Close()
		_ = rc.Close()
	}, nil
}

// ProvideHealthProvider picks the configured backend and puts the cache in front of it.
func ProvideHealthProvider(cfg *config.Config, ch *pkgch.Client, c cache.Service, clock util.Clock, l *applogger.Logger) (*internalrepo.CachedProvider, error) {
	var base domrepo.HealthDataProvider
	switch cfg.Provider.Type {
	case config.ProviderClickHouse:
		if ch == nil {
			return nil, fmt.Errorf("clickhouse provider selected but no clickhouse client")
		}
		p := internalrepo.NewCHHealthProvider(ch.DB(), samplesTable(cfg), clock.Location())
		p.SetLogger(l.With(applogger.String("component", "clickhouse_provider")))
		base = p
	case config.ProviderHTTP:
		base = healthapi.New(cfg.HealthAPI.BaseURL,
			healthapi.WithToken(cfg.HealthAPI.Token),
			healthapi.WithTimeout(cfg.HealthAPI.Timeout),
			healthapi.WithLocation(clock.Location()),
			healthapi.WithLogger(l.With(applogger.String("component", "health_api"))),
		)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Provider.Type)
	}
	return internalrepo.NewCachedProvider(base, c, clock, cfg.Provider.CacheTTL, l), nil
}

func ProvideMetricAggregator(cfg *config.Config, provider *internalrepo.CachedProvider, clock util.Clock, m *metrics.Recorder, l *applogger.Logger) *usecase.MetricAggregator {
	return usecase.NewMetricAggregator(provider, clock,
		usecase.WithWindowDays(cfg.Dashboard.WindowDays),
		usecase.WithFetchTimeout(cfg.HealthAPI.Timeout),
		usecase.WithAggregatorMetrics(m),
		usecase.WithAggregatorLogger(l.With(applogger.String("component", "aggregator"))),
	)
}

func ProvideRefreshCoordinator(cfg *config.Config, agg *usecase.MetricAggregator, provider *internalrepo.CachedProvider, clock util.Clock, m *metrics.Recorder, l *applogger.Logger) (*usecase.RefreshCoordinator, func()) {
	coord := usecase.NewRefreshCoordinator(agg, provider, clock,
		usecase.WithCancelSuperseded(cfg.Dashboard.CancelSuperseded),
		usecase.WithCoordinatorMetrics(m),
		usecase.WithCoordinatorLogger(l.With(applogger.String("component", "coordinator"))),
	)
	return coord, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = coord.Close(ctx)
	}
}

// ProvideSnapshotPipeline subscribes a Kafka publishing pipeline to the
// coordinator; nil when snapshots are not published.
func ProvideSnapshotPipeline(cfg *config.Config, producer *pkgkafka.Producer, coord *usecase.RefreshCoordinator, m *metrics.Recorder, l *applogger.Logger) *mid.SnapshotPipeline {
	if producer == nil || cfg.Kafka.SnapshotsTopic == "" {
		return nil
	}
	pub := internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.SnapshotsTopic)
	pipe := mid.NewSnapshotPipeline(pub, m,
		mid.WithBufferSize(cfg.Kafka.Pipeline.BufferSize),
		mid.WithSettledOnly(cfg.Kafka.Pipeline.SettledOnly),
		mid.WithRetry(uint(cfg.Kafka.Producer.MaxAttempts), cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		mid.WithPipelineLogger(l.With(applogger.String("component", "snapshot_pipeline"))),
	)
	coord.Subscribe(pipe.Offer)
	return pipe
}

// ProvideKafkaConsumer returns nil unless a samples topic is configured.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Kafka.SamplesTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l.With(applogger.String("component", "kafka_consumer")),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideSampleIngestHandler returns nil unless a samples topic is configured.
func ProvideSampleIngestHandler(cfg *config.Config, ch *pkgch.Client, provider *internalrepo.CachedProvider, coord *usecase.RefreshCoordinator, clock util.Clock, m *metrics.Recorder, l *applogger.Logger) *usecase.SampleIngestHandler {
	if cfg.Kafka.SamplesTopic == "" || ch == nil {
		return nil
	}
	store := internalrepo.NewCHSampleStore(ch.DB(), samplesTable(cfg))
	return usecase.NewSampleIngestHandler(cfg.Kafka.SamplesTopic, store, clock, m, l.With(applogger.String("component", "ingest"))).
		WithInvalidator(provider).
		WithRefresher(coord)
}

func ProvideDashboardHandler(cfg *config.Config, coord *usecase.RefreshCoordinator, clock util.Clock, l *applogger.Logger) *api.DashboardEchoHandler {
	unit, _ := models.ParseDistanceUnit(cfg.Dashboard.DistanceUnit)
	return api.NewDashboardEchoHandler(l.With(applogger.String("component", "http")), coord,
		api.Defaults{
			Goal:     cfg.Dashboard.DailyStepGoal,
			Unit:     unit,
			Location: clock.Location(),
		},
		ratelimit.New(cfg.RateLimit.RefreshBurst, cfg.RateLimit.RefreshPerSec),
	)
}

func ProvideHTTPServer(cfg *config.Config, h *api.DashboardEchoHandler, l *applogger.Logger) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(
		xhttp.WithRoutes(h),
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithMetricsPath(path),
		xhttp.WithLogger(l),
	)
}

// ProvideApp hands lifecycle ownership of every component to the App.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	coord *usecase.RefreshCoordinator,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	ingest *usecase.SampleIngestHandler,
	pipe *mid.SnapshotPipeline,
	producer *pkgkafka.Producer,
) *server.App {
	return server.New(cfg, l, server.Components{
		Coordinator: coord,
		HTTPServer:  srv,
		Consumer:    consumer,
		Ingest:      ingest,
		Pipeline:    pipe,
		Producer:    producer,
	})
}
