package server

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	mid "Pace/internal/middleware"
	"Pace/internal/usecase"
	"Pace/pkg/config"
	xhttp "Pace/pkg/http"
	pkgkafka "Pace/pkg/kafka"
	applogger "Pace/pkg/logger"
)

// Components are the long-running parts of the service. Optional parts are nil
// when disabled. Connection pools are closed by the injector cleanup, not here.
type Components struct {
	Coordinator *usecase.RefreshCoordinator
	HTTPServer  *xhttp.Server
	Consumer    *pkgkafka.Consumer
	Ingest      *usecase.SampleIngestHandler
	Pipeline    *mid.SnapshotPipeline
	Producer    *pkgkafka.Producer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	l   *applogger.Logger
	c   Components
}

func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, c: c}
}

func (a *App) Coordinator() *usecase.RefreshCoordinator { return a.c.Coordinator }

// Run starts every component, loads today, and blocks until ctx is done or
// the HTTP server fails. It always shuts down before returning.
func (a *App) Run(ctx context.Context) error {
	if a.c.Producer != nil && a.cfg.Kafka.LogsTopic != "" {
		a.l.AddCollector(&applogger.CollectionConfig{
			Topic:     a.cfg.Kafka.LogsTopic,
			Publisher: a.c.Producer,
		})
	}

	if a.c.Pipeline != nil {
		a.c.Pipeline.Start(ctx)
		a.l.Info("snapshot pipeline started", applogger.String("topic", a.cfg.Kafka.SnapshotsTopic))
	}

	if a.c.Consumer != nil && a.c.Ingest != nil {
		a.c.Consumer.RegisterHandler(a.c.Ingest)
		if err := a.c.Consumer.Start(); err != nil {
			return multierr.Append(fmt.Errorf("start consumer: %w", err), a.shutdown())
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.c.Ingest.Topic()))
	}

	if err := a.c.HTTPServer.Start(); err != nil {
		return multierr.Append(fmt.Errorf("start http server: %w", err), a.shutdown())
	}

	a.c.Coordinator.Initialize(ctx)
	a.l.Info("dashboard initialized",
		applogger.String("provider", a.cfg.Provider.Type),
		applogger.String("timezone", a.cfg.Location().String()),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err := <-a.c.HTTPServer.Errors():
		runErr = fmt.Errorf("http server: %w", err)
	}
	return multierr.Append(runErr, a.shutdown())
}

// shutdown stops components in reverse start order and collects every error.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	start := time.Now()

	var errs error
	if err := a.c.HTTPServer.Stop(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if a.c.Consumer != nil {
		errs = multierr.Append(errs, a.c.Consumer.Stop(ctx))
	}
	errs = multierr.Append(errs, a.c.Coordinator.Close(ctx))
	if a.c.Pipeline != nil {
		a.c.Pipeline.Stop()
	}
	// flushes pending aggregated logs through the producer
	a.l.RemoveCollector()
	if a.c.Producer != nil {
		errs = multierr.Append(errs, a.c.Producer.Close())
	}

	if errs != nil {
		a.l.Error("shutdown finished with errors", applogger.Error(errs))
	} else {
		a.l.Info("shutdown complete", applogger.Duration("duration_ms", time.Since(start)))
	}
	return errs
}
